package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultCallbackAddr = "127.0.0.1:8080"
	authorizeTimeout    = 5 * time.Minute
)

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// NewOAuthConfig builds the installed-app OAuth configuration for Google APIs.
// RedirectURL is filled in by the interactive flow.
func NewOAuthConfig(clientID, clientSecret string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://" + defaultCallbackAddr,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
}

// autoSaveTokenSource wraps an oauth2.TokenSource and saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// callbackServer receives the OAuth redirect on a loopback port.
type callbackServer struct {
	redirectURL string
	state       string
	codes       chan string
	errs        chan error
	server      *http.Server
}

// startCallbackServer listens on 127.0.0.1:8080, or a random port if that is taken.
func startCallbackServer(state string) (*callbackServer, error) {
	listener, err := net.Listen("tcp", defaultCallbackAddr)
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	cb := &callbackServer{
		redirectURL: fmt.Sprintf("http://127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port),
		state:       state,
		codes:       make(chan string, 1),
		errs:        make(chan error, 1),
	}
	cb.server = &http.Server{
		Handler:      http.HandlerFunc(cb.handle),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	go func() {
		if err := cb.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cb.fail(fmt.Errorf("server error: %w", err))
		}
	}()

	return cb, nil
}

func (cb *callbackServer) fail(err error) {
	select {
	case cb.errs <- err:
	default:
	}
}

func (cb *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("error") != "":
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", q.Get("error"))
		cb.fail(fmt.Errorf("authorization error: %s", q.Get("error")))
	case q.Get("state") != cb.state:
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	case q.Get("code") == "":
		fmt.Fprintf(w, "<html><body><h1>No authorization code received</h1></body></html>")
		cb.fail(errors.New("no authorization code received"))
	default:
		fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
		select {
		case cb.codes <- q.Get("code"):
		default:
		}
	}
}

func (cb *callbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cb.server.Shutdown(ctx)
}

// authorize runs the browser consent flow and returns a fresh token.
func authorize(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	state := uuid.NewString()
	cb, err := startCallbackServer(state)
	if err != nil {
		return nil, err
	}
	defer cb.shutdown()

	oauthConfig.RedirectURL = cb.redirectURL
	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("Starting local server on %s\n", cb.redirectURL)
	if cb.redirectURL != "http://"+defaultCallbackAddr {
		fmt.Printf("Note: Port 8080 was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", cb.redirectURL)
	}
	fmt.Println("\nPlease visit the following URL to authorize the application:")
	fmt.Println(authURL)
	fmt.Println("\nWaiting for authorization...")

	var code string
	select {
	case code = <-cb.codes:
	case err := <-cb.errs:
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	case <-time.After(authorizeTimeout):
		return nil, fmt.Errorf("authorization timeout: no response received within %s", authorizeTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// GetAuthenticatedClient returns an HTTP client authorized by the stored token.
// If no token exists, it walks the operator through the browser consent flow
// and stores the result. Refreshed tokens are written back to the store.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore) (*http.Client, error) {
	token, err := tokenStore.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		token, err = authorize(ctx, oauthConfig)
		if err != nil {
			return nil, err
		}
		if err := tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Println("Authorization successful!")
	}

	autoSaveSource := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		tokenStore: tokenStore,
		lastToken:  token,
	}

	return oauth2.NewClient(ctx, autoSaveSource), nil
}
