package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

const ProductID = "-//reconcile-tools//calmod//EN"

// ErrNothingToExport is returned when no event could be converted.
var ErrNothingToExport = errors.New("no exportable events")

// Encode writes events as a single VCALENDAR, one VEVENT per event.
// Events without a usable start are skipped with a warning.
func Encode(w io.Writer, events []*calendar.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	now := time.Now().UTC()
	for _, event := range events {
		vevent, err := eventComponent(event, now)
		if err != nil {
			log.Printf("Warning: skipping event %s: %v", event.Id, err)
			continue
		}
		cal.Children = append(cal.Children, vevent)
	}
	if len(cal.Children) == 0 {
		return ErrNothingToExport
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// WriteFile encodes events to path, replacing any existing file.
func WriteFile(path string, events []*calendar.Event) error {
	var buf bytes.Buffer
	if err := Encode(&buf, events); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func eventComponent(event *calendar.Event, now time.Time) (*ical.Component, error) {
	vevent := ical.NewComponent(ical.CompEvent)

	// iCalUID is stable across calendars; the event id is not.
	switch {
	case event.ICalUID != "":
		vevent.Props.SetText(ical.PropUID, event.ICalUID)
	case event.Id != "":
		vevent.Props.SetText(ical.PropUID, event.Id)
	default:
		vevent.Props.SetText(ical.PropUID, uuid.NewString())
	}

	summary := event.Summary
	if summary == "" {
		summary = "[No Title]"
	}
	vevent.Props.SetText(ical.PropSummary, summary)

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	setWhen(vevent, ical.PropDateTimeStart, event.Start)
	setWhen(vevent, ical.PropDateTimeEnd, event.End)
	if vevent.Props.Get(ical.PropDateTimeStart) == nil {
		return nil, errors.New("missing or invalid start")
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now)
	return vevent, nil
}

// setWhen writes a DATE for all-day values and a UTC DATE-TIME otherwise.
// Unparseable values are left out.
func setWhen(vevent *ical.Component, name string, dt *calendar.EventDateTime) {
	if dt == nil {
		return
	}
	if dt.Date != "" {
		d, err := time.Parse("2006-01-02", dt.Date)
		if err == nil {
			prop := ical.NewProp(name)
			prop.SetDate(d)
			vevent.Props.Set(prop)
		}
		return
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err == nil {
			// Offset-only zones have no TZID, so write UTC.
			vevent.Props.SetDateTime(name, t.UTC())
		}
	}
}
