package ics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"
)

func decode(t *testing.T, data []byte) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		t.Fatalf("Failed to decode exported calendar: %v", err)
	}
	return cal
}

func propValue(c *ical.Component, name string) string {
	if p := c.Props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

func TestEncode_TimedEvent(t *testing.T) {
	events := []*calendar.Event{{
		Id:          "abc123",
		ICalUID:     "abc123@google.com",
		Summary:     "Dentist",
		Description: "Bring forms",
		Location:    "Main St",
		Start:       &calendar.EventDateTime{DateTime: "2024-01-02T10:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2024-01-02T11:00:00Z"},
	}}

	var buf bytes.Buffer
	if err := Encode(&buf, events); err != nil {
		t.Fatalf("Encode() returned an error: %v", err)
	}

	cal := decode(t, buf.Bytes())
	if len(cal.Children) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(cal.Children))
	}
	vevent := cal.Children[0]
	if vevent.Name != ical.CompEvent {
		t.Errorf("Expected VEVENT, got %s", vevent.Name)
	}

	want := map[string]string{
		ical.PropUID:           "abc123@google.com",
		ical.PropSummary:       "Dentist",
		ical.PropDescription:   "Bring forms",
		ical.PropLocation:      "Main St",
		ical.PropDateTimeStart: "20240102T100000Z",
		ical.PropDateTimeEnd:   "20240102T110000Z",
	}
	for name, v := range want {
		if got := propValue(vevent, name); got != v {
			t.Errorf("Expected %s to be '%s', got '%s'", name, v, got)
		}
	}
	if vevent.Props.Get(ical.PropDateTimeStamp) == nil {
		t.Error("Expected DTSTAMP to be set")
	}
}

func TestEncode_OffsetTimesWrittenAsUTC(t *testing.T) {
	events := []*calendar.Event{{
		Id:      "pst1",
		Summary: "Standup",
		Start:   &calendar.EventDateTime{DateTime: "2024-01-02T10:00:00-08:00", TimeZone: "America/Los_Angeles"},
		End:     &calendar.EventDateTime{DateTime: "2024-01-02T11:00:00-08:00", TimeZone: "America/Los_Angeles"},
	}}

	var buf bytes.Buffer
	if err := Encode(&buf, events); err != nil {
		t.Fatalf("Encode() returned an error: %v", err)
	}

	vevent := decode(t, buf.Bytes()).Children[0]
	if got := propValue(vevent, ical.PropDateTimeStart); got != "20240102T180000Z" {
		t.Errorf("Expected DTSTART '20240102T180000Z', got '%s'", got)
	}
	if got := propValue(vevent, ical.PropDateTimeEnd); got != "20240102T190000Z" {
		t.Errorf("Expected DTEND '20240102T190000Z', got '%s'", got)
	}
	for _, name := range []string{ical.PropDateTimeStart, ical.PropDateTimeEnd} {
		if tzid := vevent.Props.Get(name).Params.Get(ical.ParamTimezoneID); tzid != "" {
			t.Errorf("Expected no TZID on %s, got '%s'", name, tzid)
		}
	}
	if strings.Contains(buf.String(), "TZID=") {
		t.Errorf("Expected no TZID parameters, got:\n%s", buf.String())
	}
}

func TestEncode_AllDayEventAndDefaults(t *testing.T) {
	events := []*calendar.Event{{
		Id:    "day1",
		Start: &calendar.EventDateTime{Date: "2024-03-01"},
		End:   &calendar.EventDateTime{Date: "2024-03-02"},
	}}

	var buf bytes.Buffer
	if err := Encode(&buf, events); err != nil {
		t.Fatalf("Encode() returned an error: %v", err)
	}

	vevent := decode(t, buf.Bytes()).Children[0]
	start := vevent.Props.Get(ical.PropDateTimeStart)
	if start == nil || start.Value != "20240301" {
		t.Fatalf("Expected DTSTART 20240301, got %v", start)
	}
	if start.ValueType() != ical.ValueDate {
		t.Errorf("Expected DTSTART value type DATE, got %s", start.ValueType())
	}
	if got := propValue(vevent, ical.PropUID); got != "day1" {
		t.Errorf("Expected UID to fall back to the event id, got '%s'", got)
	}
	if got := propValue(vevent, ical.PropSummary); got != "[No Title]" {
		t.Errorf("Expected '[No Title]', got '%s'", got)
	}
	if vevent.Props.Get(ical.PropLocation) != nil {
		t.Error("Expected no LOCATION for an event without one")
	}
}

func TestEncode_GeneratesUID(t *testing.T) {
	var buf bytes.Buffer
	start := &calendar.EventDateTime{Date: "2024-03-01"}
	if err := Encode(&buf, []*calendar.Event{{Summary: "x", Start: start}, {Summary: "y", Start: start}}); err != nil {
		t.Fatalf("Encode() returned an error: %v", err)
	}

	cal := decode(t, buf.Bytes())
	a, b := propValue(cal.Children[0], ical.PropUID), propValue(cal.Children[1], ical.PropUID)
	if a == "" || b == "" || a == b {
		t.Errorf("Expected two distinct generated UIDs, got '%s' and '%s'", a, b)
	}
}

func TestEncode_SkipsEventsWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	events := []*calendar.Event{
		{Id: "nostart"},
		{Id: "bad", Start: &calendar.EventDateTime{DateTime: "not a time"}},
		{Id: "ok", Start: &calendar.EventDateTime{Date: "2024-03-01"}},
	}
	if err := Encode(&buf, events); err != nil {
		t.Fatalf("Encode() returned an error: %v", err)
	}

	cal := decode(t, buf.Bytes())
	if len(cal.Children) != 1 || propValue(cal.Children[0], ical.PropUID) != "ok" {
		t.Errorf("Expected only event 'ok' to be exported, got %d components", len(cal.Children))
	}

	if err := Encode(&bytes.Buffer{}, events[:2]); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Expected ErrNothingToExport, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ics")
	events := []*calendar.Event{{Id: "e1", Start: &calendar.EventDateTime{Date: "2024-03-01"}}}
	if err := WriteFile(path, events); err != nil {
		t.Fatalf("WriteFile() returned an error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read exported file: %v", err)
	}
	if !strings.Contains(string(data), "PRODID:"+ProductID) {
		t.Errorf("Expected PRODID in output, got:\n%s", data)
	}
}
