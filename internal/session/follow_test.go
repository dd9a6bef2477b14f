package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beekhof/reconcile-tools/internal/collect"
	"github.com/beekhof/reconcile-tools/internal/config"
	"github.com/beekhof/reconcile-tools/internal/instagram"
	"github.com/beekhof/reconcile-tools/internal/snapshot"
)

// fakeFollowClient serves follow lists from memory, one page per inner slice.
type fakeFollowClient struct {
	userID    string
	lists     map[instagram.ListKind][][]string
	failAfter map[instagram.ListKind]int // pages served before failing; 0 never fails
	resolved  []string
}

func (f *fakeFollowClient) ResolveUserID(ctx context.Context, username string) (string, error) {
	f.resolved = append(f.resolved, username)
	if f.userID == "" {
		return "", fmt.Errorf("%w: %s", instagram.ErrUserNotFound, username)
	}
	return f.userID, nil
}

func (f *fakeFollowClient) Lister(userID string, kind instagram.ListKind) collect.Fetcher[instagram.User] {
	pages := f.lists[kind]
	served := 0
	return collect.FetcherFunc[instagram.User](func(ctx context.Context, cursor string) (collect.Page[instagram.User], error) {
		if n := f.failAfter[kind]; n > 0 && served >= n {
			return collect.Page[instagram.User]{}, fmt.Errorf("%w: status 429", collect.ErrFetchFailed)
		}
		i := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &i)
		}
		served++
		page := collect.Page[instagram.User]{}
		for _, name := range pages[i] {
			page.Items = append(page.Items, instagram.User{Username: name})
		}
		if i+1 < len(pages) {
			page.Next = fmt.Sprint(i + 1)
		}
		return page, nil
	})
}

func followConfig(t *testing.T, exclusions ...string) *config.FollowConfig {
	t.Helper()
	dir := t.TempDir()
	exclusionsFile := filepath.Join(dir, "exclusions.txt")
	if err := snapshot.WriteLines(exclusionsFile, exclusions); err != nil {
		t.Fatalf("Failed to write exclusions: %v", err)
	}
	cfg := &config.FollowConfig{
		SessionID:      "s",
		TargetAccount:  "target",
		ExclusionsFile: exclusionsFile,
		OutputDir:      dir,
	}
	cfg.Normalize()
	return cfg
}

func newTestFollowSession(client FollowClient, cfg *config.FollowConfig, out *bytes.Buffer) (*FollowSession, *[]time.Duration) {
	var sleeps []time.Duration
	s := NewFollowSession(client, cfg, out, false)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func TestFollowSession_Run(t *testing.T) {
	client := &fakeFollowClient{
		userID: "42",
		lists: map[instagram.ListKind][][]string{
			instagram.Followers: {{"b", "x"}, {"y"}},
			instagram.Following: {{"a", "b"}, {"c"}, {"d"}},
		},
	}
	cfg := followConfig(t, "@c")
	var out bytes.Buffer
	s, sleeps := newTestFollowSession(client, cfg, &out)

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	if report.UserID != "42" {
		t.Errorf("Expected user id '42', got '%s'", report.UserID)
	}
	if strings.Join(report.NotFollowingBack, ",") != "a,d" {
		t.Errorf("Expected [a d], got %v", report.NotFollowingBack)
	}
	if !report.Complete() {
		t.Error("Expected a complete report")
	}

	// One pause between consecutive pages: 1 for followers, 2 for following.
	if len(*sleeps) != 3 {
		t.Errorf("Expected 3 pauses, got %d", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d < config.DefaultMinDelay || d > config.DefaultMaxDelay {
			t.Errorf("Expected pause within [%s, %s], got %s", config.DefaultMinDelay, config.DefaultMaxDelay, d)
		}
	}

	followers, err := snapshot.ReadLines(filepath.Join(cfg.OutputDir, "followers_formatted.txt"))
	if err != nil {
		t.Fatalf("Failed to read followers list: %v", err)
	}
	if strings.Join(followers, ",") != "b,x,y" {
		t.Errorf("Expected followers [b x y], got %v", followers)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "debug_following.json"))
	if err != nil {
		t.Fatalf("Failed to read debug snapshot: %v", err)
	}
	var debug snapshot.Debug
	if err := json.Unmarshal(data, &debug); err != nil {
		t.Fatalf("Failed to parse debug snapshot: %v", err)
	}
	if debug.Kind != "following" || !debug.Complete || debug.Pages != 3 || len(debug.Items) != 4 {
		t.Errorf("Unexpected debug snapshot: %+v", debug)
	}

	if !strings.Contains(out.String(), "\na\nd\n") {
		t.Errorf("Expected report lines for a and d, got:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Warning") {
		t.Errorf("Expected no incomplete warning, got:\n%s", out.String())
	}
}

func TestFollowSession_PartialListWarns(t *testing.T) {
	client := &fakeFollowClient{
		userID: "42",
		lists: map[instagram.ListKind][][]string{
			instagram.Followers: {{"b"}, {"a"}},
			instagram.Following: {{"a", "b"}},
		},
		failAfter: map[instagram.ListKind]int{instagram.Followers: 1},
	}
	cfg := followConfig(t)
	var out bytes.Buffer
	s, _ := newTestFollowSession(client, cfg, &out)

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}
	if report.Complete() {
		t.Error("Expected an incomplete report")
	}
	// "a" follows back on the page that failed, so it shows up as a false positive.
	if strings.Join(report.NotFollowingBack, ",") != "a" {
		t.Errorf("Expected [a], got %v", report.NotFollowingBack)
	}
	if !strings.Contains(out.String(), "may follow you back") {
		t.Errorf("Expected incomplete warning, got:\n%s", out.String())
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "debug_followers.json"))
	if err != nil {
		t.Fatalf("Failed to read debug snapshot: %v", err)
	}
	var debug snapshot.Debug
	if err := json.Unmarshal(data, &debug); err != nil {
		t.Fatalf("Failed to parse debug snapshot: %v", err)
	}
	if debug.Complete || debug.Error == "" {
		t.Errorf("Expected an incomplete snapshot with an error, got %+v", debug)
	}
}

func TestFollowSession_UserNotFound(t *testing.T) {
	client := &fakeFollowClient{}
	s, _ := newTestFollowSession(client, followConfig(t), &bytes.Buffer{})

	_, err := s.Run(context.Background())
	if !errors.Is(err, instagram.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestFollowSession_FirstPageFailureIsFatal(t *testing.T) {
	client := &failingLister{fakeFollowClient{userID: "42"}}
	s, _ := newTestFollowSession(client, followConfig(t), &bytes.Buffer{})

	_, err := s.Run(context.Background())
	if !errors.Is(err, collect.ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
}

// failingLister fails every listing call.
type failingLister struct {
	fakeFollowClient
}

func (f *failingLister) Lister(userID string, kind instagram.ListKind) collect.Fetcher[instagram.User] {
	return collect.FetcherFunc[instagram.User](func(ctx context.Context, cursor string) (collect.Page[instagram.User], error) {
		return collect.Page[instagram.User]{}, fmt.Errorf("%w: status 401", collect.ErrFetchFailed)
	})
}

func TestFollowSession_MissingExclusions(t *testing.T) {
	cfg := followConfig(t)
	cfg.ExclusionsFile = filepath.Join(t.TempDir(), "missing.txt")
	client := &fakeFollowClient{userID: "42"}
	s, _ := newTestFollowSession(client, cfg, &bytes.Buffer{})

	_, err := s.Run(context.Background())
	if !errors.Is(err, config.ErrConfigMissing) {
		t.Errorf("Expected ErrConfigMissing, got %v", err)
	}
	if len(client.resolved) != 0 {
		t.Error("Expected no lookup before configuration is loaded")
	}
}
