package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSlotTaken       = errors.New("time slot already booked")
	// ErrSlotUnavailable means the requested start is not an offered slot.
	ErrSlotUnavailable = errors.New("time slot not available")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Blocking reports whether an appointment in this status still reserves its window.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusAccepted
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Appointment times are minutes after midnight on Date, in the schedule's zone.
type Appointment struct {
	ID          string
	CustomerID  string
	LocationID  string
	ServiceID   string
	Date        time.Time
	StartMinute int
	EndMinute   int
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation is the slice of an appointment the slot generator needs.
type Reservation struct {
	AppointmentID string
	LocationID    string
	Date          time.Time
	StartMinute   int
	EndMinute     int
	Status        Status
}

func (a Appointment) Reservation() Reservation {
	return Reservation{
		AppointmentID: a.ID,
		LocationID:    a.LocationID,
		Date:          a.Date,
		StartMinute:   a.StartMinute,
		EndMinute:     a.EndMinute,
		Status:        a.Status,
	}
}
