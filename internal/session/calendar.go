package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	calclient "github.com/beekhof/reconcile-tools/internal/calendar"
	"github.com/beekhof/reconcile-tools/internal/collect"
	"github.com/beekhof/reconcile-tools/internal/config"
	"github.com/beekhof/reconcile-tools/internal/ics"
	"github.com/beekhof/reconcile-tools/internal/match"
	"github.com/beekhof/reconcile-tools/internal/mutate"
	"github.com/beekhof/reconcile-tools/internal/prompt"

	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
)

// CalendarSession runs the select, export and delete modes of the calendar tool.
type CalendarSession struct {
	client  calclient.CalendarClient
	config  *config.Config
	out     io.Writer
	verbose bool

	// sleep paces page requests; nil uses the collector default.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCalendarSession creates a new CalendarSession. Operator-facing output goes to out.
func NewCalendarSession(client calclient.CalendarClient, cfg *config.Config, out io.Writer, verbose bool) *CalendarSession {
	return &CalendarSession{client: client, config: cfg, out: out, verbose: verbose}
}

// SelectResult summarizes a selection run.
type SelectResult struct {
	Listed     int
	Candidates int
	Selected   []string
	Complete   bool
}

// Candidates lists events from the configured start time and keeps those whose
// summary matches a keyword. The collection is returned so callers can tell a
// capped or truncated listing from a complete one.
func (s *CalendarSession) Candidates(ctx context.Context, keywords []string) ([]*calendar.Event, *collect.Collection[*calendar.Event], error) {
	timeMin, err := time.Parse(time.RFC3339, s.config.TimeMin)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid time_min %q: %w", s.config.TimeMin, err)
	}

	pager := &calclient.EventPager{
		Client:     s.client,
		CalendarID: s.config.CalendarID,
		Query:      calclient.ListQuery{TimeMin: timeMin, PageSize: s.config.PageSize},
	}
	collector := collect.New[*calendar.Event](pager, collect.Options{
		Name:     "events",
		MaxPages: s.config.MaxPages,
		MinDelay: time.Duration(s.config.MinDelay),
		MaxDelay: time.Duration(s.config.MaxDelay),
		Sleep:    s.sleep,
		Verbose:  s.verbose,
	})

	result, err := collector.Collect(ctx)
	if err != nil {
		return nil, nil, err
	}

	matcher := match.NewMatcher(keywords)
	var candidates []*calendar.Event
	for _, event := range result.Items {
		if matcher.Match(event.Summary) {
			candidates = append(candidates, event)
		}
	}
	return candidates, result, nil
}

// Select lets source pick among the keyword matches and saves the picked ids
// as the target list. Nothing is saved if source fails.
func (s *CalendarSession) Select(ctx context.Context, keywords []string, source prompt.SelectionSource[*calendar.Event]) (*SelectResult, error) {
	candidates, listing, err := s.Candidates(ctx, keywords)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.out, "Found %d events total, %d matching keywords.\n", len(listing.Items), len(candidates))
	if !listing.Complete {
		fmt.Fprintf(s.out, "Warning: event listing is %s; later events were not considered.\n", listing.Status())
	}

	picked, err := prompt.Select(ctx, candidates, source)
	if err != nil {
		return nil, fmt.Errorf("selection stopped: %w", err)
	}

	ids := make([]string, 0, len(picked))
	for _, event := range picked {
		ids = append(ids, event.Id)
	}
	if err := config.SaveTargetIDs(s.config.IDsFile, ids); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "\nSaved %d event IDs to '%s'.\n", len(ids), s.config.IDsFile)

	return &SelectResult{
		Listed:     len(listing.Items),
		Candidates: len(candidates),
		Selected:   ids,
		Complete:   listing.Complete,
	}, nil
}

// ExportResult summarizes an export run.
type ExportResult struct {
	Exported []string
	Failed   []mutate.ItemResult
}

// Export fetches every saved id and writes the events to the configured ICS file.
// Ids that cannot be fetched, or whose event is cancelled, are reported and skipped.
func (s *CalendarSession) Export(ctx context.Context) (*ExportResult, error) {
	ids, err := config.LoadTargetIDs(s.config.IDsFile)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{}
	var events []*calendar.Event
	for _, id := range ids {
		event, err := s.client.GetEvent(ctx, s.config.CalendarID, id)
		if err == nil && calclient.Cancelled(event) {
			err = fmt.Errorf("%s: %w", id, calclient.ErrEventGone)
		}
		if err != nil {
			fmt.Fprintf(s.out, "Failed to fetch event ID %s: %v\n", id, err)
			result.Failed = append(result.Failed, mutate.ItemResult{ID: id, Err: err})
			continue
		}
		if s.verbose {
			log.Printf("DEBUG: exporting %s (%s)", id, calclient.Title(event))
		}
		fmt.Fprintf(s.out, "Exported: %s\n", calclient.Title(event))
		events = append(events, event)
		result.Exported = append(result.Exported, id)
	}

	if len(events) == 0 {
		fmt.Fprintln(s.out, "\nNo events to export.")
		return result, nil
	}

	if err := ics.WriteFile(s.config.OutputICS, events); err != nil {
		if errors.Is(err, ics.ErrNothingToExport) {
			fmt.Fprintln(s.out, "\nNo events to export.")
			result.Exported = nil
			return result, nil
		}
		return result, err
	}
	fmt.Fprintf(s.out, "\nFinished exporting %d events to '%s'.\n", len(events), s.config.OutputICS)
	return result, nil
}

// Delete removes every saved event, but only if all of them still exist and
// the operator types the confirmation token.
func (s *CalendarSession) Delete(ctx context.Context, confirmer mutate.Confirmer) (mutate.Report, error) {
	ids, err := config.LoadTargetIDs(s.config.IDsFile)
	if err != nil {
		return mutate.Report{}, err
	}

	opts := mutate.Options{Verb: "deletion", Token: s.config.ConfirmToken}
	if s.config.RequestsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), 1)
	}

	remote := &calclient.EventRemote{Client: s.client, CalendarID: s.config.CalendarID}
	batch, err := mutate.NewBatch(ids, remote, opts)
	if err != nil {
		return mutate.Report{}, err
	}

	report, err := batch.Run(ctx, confirmer)
	s.printReport(report)
	return report, err
}

func (s *CalendarSession) printReport(r mutate.Report) {
	switch r.State {
	case mutate.Aborted:
		for _, m := range r.Missing {
			fmt.Fprintf(s.out, "Event ID not found: %s (%v)\n", m.ID, m.Err)
		}
		fmt.Fprintf(s.out, "\nWarning: %d of %d events are missing. Aborting deletion.\n", len(r.Missing), r.Total)
	case mutate.Cancelled:
		fmt.Fprintln(s.out, "Cancelled.")
	case mutate.Completed:
		for _, id := range r.Succeeded {
			fmt.Fprintf(s.out, "Deleted event ID: %s\n", id)
		}
		for _, f := range r.Failed {
			fmt.Fprintf(s.out, "Failed to delete event ID %s: %v\n", f.ID, f.Err)
		}
		fmt.Fprintf(s.out, "Deletion complete: %d deleted, %d failed.\n", len(r.Succeeded), len(r.Failed))
	}
}

// FormatEvent renders an event the way the selection prompt shows it.
func FormatEvent(event *calendar.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "---\n%s | %s", calclient.StartString(event), calclient.Title(event))
	if event.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", event.Location)
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", event.Description)
	}
	return b.String()
}

// EventPrompt asks the operator about each event on console.
func EventPrompt(console *prompt.Console) prompt.SelectionSource[*calendar.Event] {
	return func(ctx context.Context, event *calendar.Event) (bool, error) {
		return console.Confirm(ctx, "Add this to delete list?", FormatEvent(event))
	}
}
