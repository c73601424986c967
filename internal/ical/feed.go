// Package ical renders upcoming occurrences as an iCalendar feed that
// calendar clients can subscribe to.
package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

const (
	productID = "-//easy-meetings//Meeting Feed//EN"
	uidDomain = "easymeetings"
)

type Feed struct {
	Name     string
	Location *time.Location
}

// Encode serializes occurrences as a PUBLISH calendar. Times are emitted
// in UTC; stamp is the DTSTAMP of every event.
func (f Feed) Encode(occurrences []domain.Occurrence, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}

	for _, occ := range occurrences {
		start := occ.Start(f.Location)

		e := cal.AddEvent(UID(occ))
		e.SetDtStampTime(stamp)
		e.SetCreatedTime(occ.CreatedAt)
		e.SetModifiedAt(occ.UpdatedAt)
		e.SetStartAt(start)
		e.SetEndAt(start.Add(time.Duration(occ.DurationMinutes) * time.Minute))
		e.SetSummary(occ.Title)

		if occ.Status == domain.OccurrenceStatusCancelled {
			e.SetStatus(ics.ObjectStatusCancelled)
		} else {
			e.SetStatus(ics.ObjectStatusConfirmed)
		}

		if occ.JoinURL != "" {
			e.SetLocation(occ.JoinURL)
			e.SetURL(occ.JoinURL)
			e.SetDescription(fmt.Sprintf("Join: %s", occ.JoinURL))
		}
	}

	return cal.Serialize()
}

// UID is stable for the life of an occurrence so clients update in place
// after a reschedule.
func UID(occ domain.Occurrence) string {
	return occ.ID.String() + "@" + uidDomain
}
