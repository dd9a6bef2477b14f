package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

// ErrFetchFailed marks a remote listing call that did not succeed.
var ErrFetchFailed = errors.New("fetch failed")

// DefaultMaxPages bounds a collection run when Options.MaxPages is not set.
const DefaultMaxPages = 5000

// Page is one response from a cursor-paginated listing endpoint.
// An empty Next means the listing is exhausted.
type Page[T any] struct {
	Items []T
	Next  string
}

// Fetcher retrieves a single page. cursor is empty on the first call.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, cursor string) (Page[T], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, cursor string) (Page[T], error) {
	return f(ctx, cursor)
}

// Options controls pagination bounds and pacing.
type Options struct {
	// Name labels log lines, e.g. "followers".
	Name string
	// MaxPages is the safety bound on requests per run.
	MaxPages int
	// MinDelay and MaxDelay bound the randomized pause between requests.
	// Equal values give a fixed delay; zero disables pacing.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Sleep is used for pacing. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Verbose enables DEBUG log lines.
	Verbose bool
}

// Collection is the materialized result of one run.
type Collection[T any] struct {
	Items []T
	// Pages counts successfully retrieved pages.
	Pages int
	// Complete is true only when the listing ended with an empty cursor.
	Complete bool
	// Capped is true when the run stopped at MaxPages with a cursor remaining.
	Capped bool
	// Err holds the page failure that truncated the run, if any.
	Err error
}

// Status describes how the run ended.
func (c *Collection[T]) Status() string {
	switch {
	case c.Complete:
		return "complete"
	case c.Capped:
		return fmt.Sprintf("capped at %d pages", c.Pages)
	case c.Err != nil:
		return fmt.Sprintf("truncated after %d pages: %v", c.Pages, c.Err)
	default:
		return "incomplete"
	}
}

// Collector walks a listing endpoint into a Collection.
type Collector[T any] struct {
	fetcher Fetcher[T]
	opts    Options
}

// New creates a Collector. Zero-valued options fall back to defaults.
func New[T any](fetcher Fetcher[T], opts Options) *Collector[T] {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Name == "" {
		opts.Name = "items"
	}
	return &Collector[T]{fetcher: fetcher, opts: opts}
}

// Collect follows cursors until the listing is exhausted, a page fails, or
// MaxPages is reached. A page failure after at least one good page yields a
// partial Collection and a nil error. If the very first page fails, the error
// wraps ErrFetchFailed and the returned Collection is empty.
func (c *Collector[T]) Collect(ctx context.Context) (*Collection[T], error) {
	result := &Collection[T]{}
	cursor := ""

	for {
		page, err := c.fetcher.FetchPage(ctx, cursor)
		if err != nil {
			if !errors.Is(err, ErrFetchFailed) {
				err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
			}
			if result.Pages == 0 {
				return result, fmt.Errorf("failed to fetch %s: %w", c.opts.Name, err)
			}
			log.Printf("Warning: failed to fetch %s page %d, keeping %d items: %v", c.opts.Name, result.Pages+1, len(result.Items), err)
			result.Err = err
			return result, nil
		}

		result.Pages++
		result.Items = append(result.Items, page.Items...)
		if c.opts.Verbose {
			log.Printf("DEBUG: %s page %d: %d items (total %d)", c.opts.Name, result.Pages, len(page.Items), len(result.Items))
		}

		if page.Next == "" {
			result.Complete = true
			return result, nil
		}

		if result.Pages >= c.opts.MaxPages {
			log.Printf("Warning: stopped fetching %s at the %d page limit; listing is incomplete", c.opts.Name, c.opts.MaxPages)
			result.Capped = true
			return result, nil
		}

		if err := c.opts.Sleep(ctx, c.delay()); err != nil {
			result.Err = err
			return result, nil
		}
		cursor = page.Next
	}
}

func (c *Collector[T]) delay() time.Duration {
	spread := c.opts.MaxDelay - c.opts.MinDelay
	if spread <= 0 {
		return c.opts.MinDelay
	}
	return c.opts.MinDelay + rand.N(spread+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
