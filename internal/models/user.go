package models

import "time"

type Role string

const (
	RoleVolunteer   Role = "volunteer"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// ValidRole reports whether value is one of the known account roles.
func ValidRole(value string) bool {
	switch Role(value) {
	case RoleVolunteer, RoleCoordinator, RoleAdmin:
		return true
	}
	return false
}

// User is an account record. PendingCode and PendingCodeExpiry are transient:
// both are set while the account awaits one-time-code verification and cleared
// the moment verification succeeds.
type User struct {
	ID                string     `bson:"_id" json:"_id"`
	Name              string     `bson:"name" json:"name"`
	Email             string     `bson:"email" json:"email"`
	Phone             string     `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash      string     `bson:"passwordHash" json:"passwordHash"`
	Image             string     `bson:"image,omitempty" json:"image,omitempty"`
	Role              Role       `bson:"role" json:"role"`
	IsVerified        bool       `bson:"isVerified" json:"isVerified"`
	IsAdminApproved   bool       `bson:"isAdminApproved" json:"isAdminApproved"`
	ApprovedBy        string     `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	PendingCode       string     `bson:"pendingCode,omitempty" json:"pendingCode,omitempty"`
	PendingCodeExpiry *time.Time `bson:"pendingCodeExpiry,omitempty" json:"pendingCodeExpiry,omitempty"`
	CreatedAt         time.Time  `bson:"createdAt" json:"createdAt"`
}
