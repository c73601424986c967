package domain

import (
	"time"

	"github.com/google/uuid"
)

type OccurrenceStatus string

const (
	OccurrenceStatusScheduled OccurrenceStatus = "scheduled"
	OccurrenceStatusCompleted OccurrenceStatus = "completed"
	OccurrenceStatusCancelled OccurrenceStatus = "cancelled"
)

// InactiveStatuses are excluded when looking for a series' future occurrence.
var InactiveStatuses = []OccurrenceStatus{OccurrenceStatusCompleted, OccurrenceStatusCancelled}

func (s OccurrenceStatus) Valid() bool {
	switch s {
	case OccurrenceStatusScheduled, OccurrenceStatusCompleted, OccurrenceStatusCancelled:
		return true
	}
	return false
}

// Occurrence is one concrete scheduled instance bound to a remote meeting.
type Occurrence struct {
	ID       uuid.UUID
	SeriesID SeriesID
	Title    string

	Date            time.Time // civil date
	StartTime       TimeOfDay
	DurationMinutes int

	RemoteID string
	JoinURL  string

	Status    OccurrenceStatus
	Recurring bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o Occurrence) IsActive() bool {
	return o.Status != OccurrenceStatusCompleted && o.Status != OccurrenceStatusCancelled
}

// Start returns the meeting start instant in loc.
func (o Occurrence) Start(loc *time.Location) time.Time {
	return o.StartTime.On(o.Date, loc)
}

// OccurrenceUpdate carries the fields an administrative reschedule may change.
type OccurrenceUpdate struct {
	Date      time.Time
	StartTime TimeOfDay
	UpdatedAt time.Time
}
