package models

import "time"

type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

type Event struct {
	ID          string      `bson:"_id" json:"_id"`
	Title       string      `bson:"title" json:"title"`
	Description string      `bson:"description,omitempty" json:"description,omitempty"`
	Date        time.Time   `bson:"date" json:"date"`
	Location    string      `bson:"location" json:"location"`
	Category    string      `bson:"category,omitempty" json:"category,omitempty"`
	Image       string      `bson:"image,omitempty" json:"image,omitempty"`
	Budget      float64     `bson:"budget,omitempty" json:"budget,omitempty"`
	Status      EventStatus `bson:"status" json:"status"`
	Volunteers  []string    `bson:"volunteers" json:"volunteers"`
	Organizer   string      `bson:"organizer" json:"organizer"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
}
