package calendar

import (
	"context"
	"fmt"

	"github.com/beekhof/reconcile-tools/internal/collect"

	"google.golang.org/api/calendar/v3"
)

// EventPager lists a calendar page by page for the collector.
type EventPager struct {
	Client     CalendarClient
	CalendarID string
	Query      ListQuery
}

// FetchPage implements collect.Fetcher.
func (p *EventPager) FetchPage(ctx context.Context, cursor string) (collect.Page[*calendar.Event], error) {
	items, next, err := p.Client.ListEventsPage(ctx, p.CalendarID, p.Query, cursor)
	if err != nil {
		return collect.Page[*calendar.Event]{}, fmt.Errorf("%w: %w", collect.ErrFetchFailed, err)
	}
	return collect.Page[*calendar.Event]{Items: items, Next: next}, nil
}

// EventRemote exposes event existence and deletion to a mutate.Batch.
type EventRemote struct {
	Client     CalendarClient
	CalendarID string
}

// Exists returns nil only for an event that can be fetched and is not cancelled.
func (r *EventRemote) Exists(ctx context.Context, id string) error {
	event, err := r.Client.GetEvent(ctx, r.CalendarID, id)
	if err != nil {
		return err
	}
	if Cancelled(event) {
		return fmt.Errorf("%s: %w", id, ErrEventGone)
	}
	return nil
}

// Cancelled reports whether the event has been cancelled. A cancelled event is
// still returned by Get but no longer appears on the calendar.
func Cancelled(event *calendar.Event) bool {
	return event.Status == "cancelled"
}

// Mutate deletes the event.
func (r *EventRemote) Mutate(ctx context.Context, id string) error {
	return r.Client.DeleteEvent(ctx, r.CalendarID, id)
}

// Title returns the event summary, or a placeholder when it is blank.
func Title(event *calendar.Event) string {
	if event.Summary == "" {
		return "[No Title]"
	}
	return event.Summary
}

// StartString returns the dateTime of a timed event or the date of an all-day event.
func StartString(event *calendar.Event) string {
	return when(event.Start)
}

// EndString is StartString for the event end.
func EndString(event *calendar.Event) string {
	return when(event.End)
}

func when(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}
