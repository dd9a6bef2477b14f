package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beekhof/reconcile-tools/internal/collect"
)

const (
	DefaultWebBaseURL = "https://www.instagram.com"
	DefaultAPIBaseURL = "https://i.instagram.com"
	DefaultAppID      = "936619743392459"
	DefaultUserAgent  = "Mozilla/5.0"

	maxErrorBodyBytes = 512
)

// ErrUserNotFound is returned when a username search has no exact match.
var ErrUserNotFound = errors.New("user not found")

// ListKind selects one side of the follow graph.
type ListKind string

const (
	Followers ListKind = "followers"
	Following ListKind = "following"
)

// User is one entry of a follow list.
type User struct {
	PK       string `json:"pk"`
	Username string `json:"username"`
}

// Options configures a Client. Zero values fall back to the public endpoints.
type Options struct {
	SessionID  string
	AppID      string
	UserAgent  string
	WebBaseURL string
	APIBaseURL string
	HTTPClient *http.Client
}

// Client talks to the web search and friendships endpoints with a browser session cookie.
type Client struct {
	sessionID string
	appID     string
	userAgent string
	webBase   string
	apiBase   string
	client    *http.Client
}

func NewClient(opts Options) *Client {
	c := &Client{
		sessionID: opts.SessionID,
		appID:     opts.AppID,
		userAgent: opts.UserAgent,
		webBase:   strings.TrimRight(opts.WebBaseURL, "/"),
		apiBase:   strings.TrimRight(opts.APIBaseURL, "/"),
		client:    opts.HTTPClient,
	}
	if c.appID == "" {
		c.appID = DefaultAppID
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.webBase == "" {
		c.webBase = DefaultWebBaseURL
	}
	if c.apiBase == "" {
		c.apiBase = DefaultAPIBaseURL
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", DefaultWebBaseURL+"/")
	req.Header.Set("X-IG-App-ID", c.appID)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type searchResponse struct {
	Users []struct {
		User struct {
			PK       flexString `json:"pk"`
			Username string     `json:"username"`
		} `json:"user"`
	} `json:"users"`
}

// ResolveUserID finds the numeric id of username through the blended top search.
// Only an exact, case-insensitive username match counts.
func (c *Client) ResolveUserID(ctx context.Context, username string) (string, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	q := url.Values{}
	q.Set("context", "blended")
	q.Set("query", username)

	var resp searchResponse
	if err := c.get(ctx, c.webBase+"/web/search/topsearch/?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("failed to search for %s: %w", username, err)
	}

	for _, entry := range resp.Users {
		if strings.EqualFold(entry.User.Username, username) && entry.User.PK != "" {
			return string(entry.User.PK), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUserNotFound, username)
}

type friendshipsResponse struct {
	Users []struct {
		PK       flexString `json:"pk"`
		Username string     `json:"username"`
	} `json:"users"`
	NextMaxID flexString `json:"next_max_id"`
}

// FriendshipsPage fetches one page of userID's followers or following.
// maxID is the cursor returned by the previous page, empty on the first call.
func (c *Client) FriendshipsPage(ctx context.Context, userID string, kind ListKind, maxID string) (collect.Page[User], error) {
	endpoint := fmt.Sprintf("%s/api/v1/friendships/%s/%s/", c.apiBase, url.PathEscape(userID), kind)
	if maxID != "" {
		endpoint += "?" + url.Values{"max_id": {maxID}}.Encode()
	}

	var resp friendshipsResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return collect.Page[User]{}, fmt.Errorf("%w: %s: %w", collect.ErrFetchFailed, kind, err)
	}

	page := collect.Page[User]{
		Items: make([]User, 0, len(resp.Users)),
		Next:  string(resp.NextMaxID),
	}
	for _, u := range resp.Users {
		page.Items = append(page.Items, User{PK: string(u.PK), Username: u.Username})
	}
	return page, nil
}

// Lister returns a collect.Fetcher over one follow list of userID.
func (c *Client) Lister(userID string, kind ListKind) collect.Fetcher[User] {
	return collect.FetcherFunc[User](func(ctx context.Context, cursor string) (collect.Page[User], error) {
		return c.FriendshipsPage(ctx, userID, kind, cursor)
	})
}

// Usernames projects a follow list onto its usernames.
func Usernames(users []User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

// flexString accepts a JSON string, number or null. Ids and cursors come back
// as either depending on the endpoint.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", raw)
		}
		*f = flexString(n.String())
	}
	return nil
}
