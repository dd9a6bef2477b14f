package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrEventGone is returned by existence checks for events the API still
// serves but marks as cancelled.
var ErrEventGone = errors.New("event is cancelled")

// ListQuery selects which events are listed.
type ListQuery struct {
	TimeMin  time.Time
	PageSize int64
}

// CalendarClient is the narrow calendar surface the tools need.
type CalendarClient interface {
	ListEventsPage(ctx context.Context, calendarID string, q ListQuery, pageToken string) ([]*calendar.Event, string, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
// Extra options are appended, e.g. option.WithEndpoint in tests.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// ListEventsPage fetches one page of events starting at q.TimeMin, with recurring
// events expanded and ordered by start time. The returned token is empty on the last page.
func (c *Client) ListEventsPage(ctx context.Context, calendarID string, q ListQuery, pageToken string) ([]*calendar.Event, string, error) {
	call := c.service.Events.List(calendarID).
		TimeMin(q.TimeMin.Format(time.RFC3339)).
		SingleEvents(true). // orderBy=startTime requires expanded instances
		OrderBy("startTime").
		Context(ctx)
	if q.PageSize > 0 {
		call = call.MaxResults(q.PageSize)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	events, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list events: %w", err)
	}

	return events.Items, events.NextPageToken, nil
}

// GetEvent retrieves a single event by ID.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	event, err := c.service.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// DeleteEvent deletes an event from a calendar.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

// IsNotFound reports whether err is an API 404 or 410.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
