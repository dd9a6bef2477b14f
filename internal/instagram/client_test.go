package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beekhof/reconcile-tools/internal/collect"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		SessionID:  "sess-123",
		WebBaseURL: srv.URL,
		APIBaseURL: srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestResolveUserID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/web/search/topsearch/" {
			t.Errorf("Expected path '/web/search/topsearch/', got '%s'", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "Target" {
			t.Errorf("Expected query 'Target', got '%s'", got)
		}
		if got := r.URL.Query().Get("context"); got != "blended" {
			t.Errorf("Expected context 'blended', got '%s'", got)
		}
		fmt.Fprint(w, `{"users":[
			{"user":{"username":"target_fan","pk":"1"}},
			{"user":{"username":"target","pk":12345678901234567}}
		]}`)
	})

	id, err := client.ResolveUserID(context.Background(), "@Target")
	if err != nil {
		t.Fatalf("ResolveUserID() returned an error: %v", err)
	}
	if id != "12345678901234567" {
		t.Errorf("Expected id '12345678901234567', got '%s'", id)
	}
}

func TestResolveUserID_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[{"user":{"username":"someone_else","pk":"9"}}]}`)
	})

	_, err := client.ResolveUserID(context.Background(), "target")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	var cookie string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		if c, err := r.Cookie("sessionid"); err == nil {
			cookie = c.Value
		}
		fmt.Fprint(w, `{"users":[]}`)
	})

	if _, err := client.FriendshipsPage(context.Background(), "42", Followers, ""); err != nil {
		t.Fatalf("FriendshipsPage() returned an error: %v", err)
	}

	want := map[string]string{
		"User-Agent":       DefaultUserAgent,
		"Accept":           "*/*",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          "https://www.instagram.com/",
		"X-Ig-App-Id":      DefaultAppID,
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("Expected header %s to be '%s', got '%s'", k, v, got.Get(k))
		}
	}
	if cookie != "sess-123" {
		t.Errorf("Expected sessionid cookie 'sess-123', got '%s'", cookie)
	}
}

func TestLister_FollowsCursor(t *testing.T) {
	var cursors []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/friendships/42/following/" {
			t.Errorf("Expected following path, got '%s'", r.URL.Path)
		}
		maxID := r.URL.Query().Get("max_id")
		cursors = append(cursors, maxID)
		switch maxID {
		case "":
			fmt.Fprint(w, `{"users":[{"pk":1,"username":"a"},{"pk":2,"username":"b"}],"next_max_id":"24"}`)
		case "24":
			fmt.Fprint(w, `{"users":[{"pk":3,"username":"c"}],"next_max_id":48}`)
		default:
			fmt.Fprint(w, `{"users":[{"pk":4,"username":"d"}],"next_max_id":null}`)
		}
	})

	result, err := collect.New(client.Lister("42", Following), collect.Options{Name: "following"}).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() returned an error: %v", err)
	}
	if !result.Complete {
		t.Error("Expected the collection to be complete")
	}

	names := Usernames(result.Items)
	if fmt.Sprint(names) != "[a b c d]" {
		t.Errorf("Expected [a b c d], got %v", names)
	}
	if fmt.Sprint(cursors) != "[ 24 48]" {
		t.Errorf("Expected cursors ['' 24 48], got %q", cursors)
	}
}

func TestFriendshipsPage_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Please wait a few minutes"}`, http.StatusTooManyRequests)
	})

	_, err := client.FriendshipsPage(context.Background(), "42", Followers, "")
	if !errors.Is(err, collect.ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{`123`, "123"},
		{`98765432109876543210`, "98765432109876543210"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var f flexString
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Errorf("Unmarshal(%s) returned an error: %v", tt.in, err)
			continue
		}
		if string(f) != tt.want {
			t.Errorf("Expected %s to decode to '%s', got '%s'", tt.in, tt.want, f)
		}
	}

	var f flexString
	if err := json.Unmarshal([]byte(`true`), &f); err == nil {
		t.Error("Expected an error for a boolean")
	}
}
