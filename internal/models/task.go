package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// ValidTaskStatus reports whether value is a known task status.
func ValidTaskStatus(value string) bool {
	switch TaskStatus(value) {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          string     `bson:"_id" json:"_id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	EventID     string     `bson:"event" json:"event"`
	AssignedTo  string     `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Status      TaskStatus `bson:"status" json:"status"`
	DueDate     *time.Time `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
}

type ContactMessage struct {
	ID        string    `bson:"_id" json:"_id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Subject   string    `bson:"subject,omitempty" json:"subject,omitempty"`
	Message   string    `bson:"message" json:"message"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
