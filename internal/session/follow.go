package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/beekhof/reconcile-tools/internal/collect"
	"github.com/beekhof/reconcile-tools/internal/config"
	"github.com/beekhof/reconcile-tools/internal/instagram"
	"github.com/beekhof/reconcile-tools/internal/reconcile"
	"github.com/beekhof/reconcile-tools/internal/snapshot"
)

// FollowClient is the part of the social API the follow checker needs.
type FollowClient interface {
	ResolveUserID(ctx context.Context, username string) (string, error)
	Lister(userID string, kind instagram.ListKind) collect.Fetcher[instagram.User]
}

// FollowSession runs the follow checker pipeline once.
type FollowSession struct {
	client  FollowClient
	config  *config.FollowConfig
	out     io.Writer
	verbose bool

	// sleep paces page requests; nil uses the collector default.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFollowSession creates a new FollowSession. Operator-facing output goes to out.
func NewFollowSession(client FollowClient, cfg *config.FollowConfig, out io.Writer, verbose bool) *FollowSession {
	return &FollowSession{client: client, config: cfg, out: out, verbose: verbose}
}

// FollowReport is the outcome of one run.
type FollowReport struct {
	UserID           string
	Followers        *collect.Collection[instagram.User]
	Following        *collect.Collection[instagram.User]
	NotFollowingBack []string
}

// Complete reports whether both lists were fully retrieved. When false the
// report may name accounts that do follow back.
func (r *FollowReport) Complete() bool {
	return r.Followers.Complete && r.Following.Complete
}

// Run resolves the target account, collects both follow lists, writes the
// snapshots and prints accounts followed that do not follow back.
func (s *FollowSession) Run(ctx context.Context) (*FollowReport, error) {
	exclusions, err := config.LoadExclusions(s.config.ExclusionsFile)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.out, "Fetching user ID for @%s...\n", s.config.TargetAccount)
	userID, err := s.client.ResolveUserID(ctx, s.config.TargetAccount)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "User ID: %s\n", userID)

	report := &FollowReport{UserID: userID}

	fmt.Fprintln(s.out, "Getting followers...")
	if report.Followers, err = s.collectList(ctx, userID, instagram.Followers); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "Found %d followers\n", len(report.Followers.Items))

	fmt.Fprintln(s.out, "Getting following...")
	if report.Following, err = s.collectList(ctx, userID, instagram.Following); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "Found %d following\n", len(report.Following.Items))

	report.NotFollowingBack = reconcile.Strings(
		instagram.Usernames(report.Following.Items),
		instagram.Usernames(report.Followers.Items),
		exclusions,
	)

	s.printReport(report)
	return report, nil
}

// collectList walks one follow list and writes its formatted list and debug snapshot.
// Snapshot write failures are logged, not fatal.
func (s *FollowSession) collectList(ctx context.Context, userID string, kind instagram.ListKind) (*collect.Collection[instagram.User], error) {
	collector := collect.New(s.client.Lister(userID, kind), collect.Options{
		Name:     string(kind),
		MaxPages: s.config.MaxPages,
		MinDelay: s.config.MinDelay,
		MaxDelay: s.config.MaxDelay,
		Sleep:    s.sleep,
		Verbose:  s.verbose,
	})

	result, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	names := instagram.Usernames(result.Items)

	debug := snapshot.NewDebug(string(kind), names)
	debug.Complete = result.Complete
	debug.Pages = result.Pages
	if result.Err != nil {
		debug.Error = result.Err.Error()
	}
	debugPath := filepath.Join(s.config.OutputDir, fmt.Sprintf("debug_%s.json", kind))
	if err := snapshot.WriteDebug(debugPath, debug); err != nil {
		log.Printf("Warning: %v", err)
	}

	listPath := filepath.Join(s.config.OutputDir, fmt.Sprintf("%s_formatted.txt", kind))
	if err := snapshot.WriteLines(listPath, names); err != nil {
		log.Printf("Warning: failed to write %s: %v", listPath, err)
	}

	if !result.Complete {
		fmt.Fprintf(s.out, "Warning: %s list is %s\n", kind, result.Status())
	}
	return result, nil
}

func (s *FollowSession) printReport(r *FollowReport) {
	fmt.Fprintln(s.out, "\nUsers you follow who don't follow you back (excluding exclusions):")
	fmt.Fprintln(s.out)
	for _, name := range r.NotFollowingBack {
		fmt.Fprintln(s.out, name)
	}
	if !r.Complete() {
		fmt.Fprintln(s.out, "\nWarning: at least one list is incomplete, so some of these accounts may follow you back.")
	}
	fmt.Fprintln(s.out, "Done.")
}
