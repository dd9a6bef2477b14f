package mutate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/time/rate"
)

var (
	// ErrInvalidTransition is returned when a phase is invoked from the wrong state.
	ErrInvalidTransition = errors.New("invalid batch state transition")
	// ErrEmptyBatch is returned by NewBatch when there is nothing to act on.
	ErrEmptyBatch = errors.New("batch has no identifiers")
)

// DefaultConfirmToken is what the operator must type to approve execution.
const DefaultConfirmToken = "yes"

// State is a step in the verify, confirm, execute sequence.
type State int

const (
	Pending State = iota
	Verifying
	Verified
	Aborted
	Confirming
	Executing
	Cancelled
	Completed
)

var stateNames = map[State]string{
	Pending:    "Pending",
	Verifying:  "Verifying",
	Verified:   "Verified",
	Aborted:    "Aborted",
	Confirming: "Confirming",
	Executing:  "Executing",
	Cancelled:  "Cancelled",
	Completed:  "Completed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Aborted || s == Cancelled || s == Completed
}

// Remote is the pair of remote calls a batch needs. Exists returns nil when the
// identifier is present. Both calls are issued once per identifier.
type Remote interface {
	Exists(ctx context.Context, id string) error
	Mutate(ctx context.Context, id string) error
}

// Confirmer asks the operator for the confirmation token and returns what was typed.
type Confirmer interface {
	ConfirmToken(ctx context.Context, prompt string) (string, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) (string, error)

// ConfirmToken calls f.
func (f ConfirmerFunc) ConfirmToken(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ItemResult records a per-identifier failure.
type ItemResult struct {
	ID  string
	Err error
}

// Report summarizes a batch. It is meaningful in any state.
type Report struct {
	State     State
	Total     int
	Verified  []string
	Missing   []ItemResult
	Succeeded []string
	Failed    []ItemResult
}

// Attempted is the number of mutation calls issued.
func (r Report) Attempted() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Options configures a Batch.
type Options struct {
	// Verb names the mutation in prompts and logs, e.g. "delete".
	Verb string
	// Token is the literal the operator must type. Compared case-insensitively
	// after trimming. Defaults to DefaultConfirmToken.
	Token string
	// Limiter paces every remote call when set.
	Limiter *rate.Limiter
}

// Batch drives one set of identifiers through the verify and execute phases.
// Verification is all-or-nothing: a single missing identifier aborts the batch
// before any mutation. Execution is best-effort per identifier.
type Batch struct {
	ids    []string
	remote Remote
	opts   Options
	state  State

	verified  []string
	missing   []ItemResult
	succeeded []string
	failed    []ItemResult
}

// NewBatch creates a Pending batch. Duplicate identifiers are dropped, keeping
// the first occurrence.
func NewBatch(ids []string, remote Remote, opts Options) (*Batch, error) {
	seen := make(map[string]struct{}, len(ids))
	var unique []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, ErrEmptyBatch
	}

	if opts.Verb == "" {
		opts.Verb = "mutate"
	}
	if opts.Token == "" {
		opts.Token = DefaultConfirmToken
	}

	return &Batch{ids: unique, remote: remote, opts: opts, state: Pending}, nil
}

// IDs returns the deduplicated identifiers in order.
func (b *Batch) IDs() []string {
	return append([]string(nil), b.ids...)
}

// State returns the current state.
func (b *Batch) State() State {
	return b.state
}

func (b *Batch) transition(from, to State) error {
	if b.state != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, b.state)
	}
	b.state = to
	return nil
}

func (b *Batch) wait(ctx context.Context) error {
	if b.opts.Limiter == nil {
		return nil
	}
	return b.opts.Limiter.Wait(ctx)
}

// Verify checks every identifier and ends in Verified or Aborted.
// All identifiers are checked so the operator sees every missing one.
func (b *Batch) Verify(ctx context.Context) error {
	if err := b.transition(Pending, Verifying); err != nil {
		return err
	}

	for _, id := range b.ids {
		err := b.wait(ctx)
		if err == nil {
			err = b.remote.Exists(ctx, id)
		}
		if err != nil {
			log.Printf("Warning: %s not found or not checkable: %v", id, err)
			b.missing = append(b.missing, ItemResult{ID: id, Err: err})
			continue
		}
		b.verified = append(b.verified, id)
	}

	if len(b.missing) > 0 {
		log.Printf("Warning: %d of %d identifiers failed verification, aborting %s", len(b.missing), len(b.ids), b.opts.Verb)
		b.state = Aborted
		return nil
	}

	b.state = Verified
	return nil
}

// Confirm asks for the confirmation token. Only the exact token moves the batch
// to Executing; any other answer, or a prompt failure, cancels it.
func (b *Batch) Confirm(ctx context.Context, confirmer Confirmer) error {
	if err := b.transition(Verified, Confirming); err != nil {
		return err
	}

	prompt := fmt.Sprintf("All %d items found. Type '%s' to confirm %s", len(b.verified), b.opts.Token, b.opts.Verb)
	answer, err := confirmer.ConfirmToken(ctx, prompt)
	if err != nil {
		log.Printf("Warning: confirmation prompt failed, cancelling: %v", err)
		b.state = Cancelled
		return nil
	}

	if !strings.EqualFold(strings.TrimSpace(answer), b.opts.Token) {
		b.state = Cancelled
		return nil
	}

	b.state = Executing
	return nil
}

// Execute issues one mutation per verified identifier. Failures are recorded and
// do not stop the remaining calls. Identifiers are not re-verified.
func (b *Batch) Execute(ctx context.Context) error {
	if b.state != Executing {
		return fmt.Errorf("%w: cannot execute from %s", ErrInvalidTransition, b.state)
	}

	for _, id := range b.verified {
		err := b.wait(ctx)
		if err == nil {
			err = b.remote.Mutate(ctx, id)
		}
		if err != nil {
			log.Printf("Warning: failed to %s %s: %v", b.opts.Verb, id, err)
			b.failed = append(b.failed, ItemResult{ID: id, Err: err})
			continue
		}
		b.succeeded = append(b.succeeded, id)
	}

	b.state = Completed
	return nil
}

// Run drives the batch from Pending to a terminal state.
func (b *Batch) Run(ctx context.Context, confirmer Confirmer) (Report, error) {
	if err := b.Verify(ctx); err != nil {
		return b.Report(), err
	}
	if b.state == Aborted {
		return b.Report(), nil
	}

	if err := b.Confirm(ctx, confirmer); err != nil {
		return b.Report(), err
	}
	if b.state == Cancelled {
		return b.Report(), nil
	}

	err := b.Execute(ctx)
	return b.Report(), err
}

// Report returns a snapshot of the batch outcome so far.
func (b *Batch) Report() Report {
	return Report{
		State:     b.state,
		Total:     len(b.ids),
		Verified:  append([]string(nil), b.verified...),
		Missing:   append([]ItemResult(nil), b.missing...),
		Succeeded: append([]string(nil), b.succeeded...),
		Failed:    append([]ItemResult(nil), b.failed...),
	}
}
