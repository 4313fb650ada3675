package gmail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Scopes are the OAuth scopes clinbox requests: modify for archive and
// trash, send for replies.
var Scopes = []string{
	gmailapi.GmailModifyScope,
	gmailapi.GmailSendScope,
}

// OAuthConfig returns the OAuth client configuration for the given
// installed-app credentials.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
}

// LoadToken reads a cached token from path.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}

	return tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(tok)
}

// persistingSource writes refreshed tokens back to disk so the next run
// does not need to refresh again.
type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
	log  *slog.Logger
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := SaveToken(p.path, tok); err != nil {
			p.log.Warn("Unable to persist refreshed token",
				"path", p.path, "err", err)
		}
	}

	return tok, nil
}

// Authorizer produces an authenticated HTTP client for the Gmail API.
type Authorizer struct {
	cfg       *oauth2.Config
	tokenPath string
	log       *slog.Logger

	// OpenBrowser is called with the consent URL. When nil or when it
	// fails, the URL is only printed through Prompt.
	OpenBrowser func(url string) error

	// Prompt shows a line of text to the user.
	Prompt func(msg string)
}

// NewAuthorizer returns an Authorizer that caches its token at tokenPath.
func NewAuthorizer(cfg *oauth2.Config, tokenPath string,
	log *slog.Logger) *Authorizer {

	return &Authorizer{
		cfg:       cfg,
		tokenPath: tokenPath,
		log:       log,
		Prompt:    func(msg string) { fmt.Fprintln(os.Stderr, msg) },
	}
}

// Client returns an HTTP client carrying a valid token, running the
// browser consent flow when no cached token exists.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	tok, err := LoadToken(a.tokenPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		tok, err = a.consent(ctx)
		if err != nil {
			return nil, err
		}
		if err := SaveToken(a.tokenPath, tok); err != nil {
			return nil, err
		}

	case err != nil:
		return nil, err
	}

	src := &persistingSource{
		base: a.cfg.TokenSource(ctx, tok),
		path: a.tokenPath,
		last: tok.AccessToken,
		log:  a.log,
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// consent runs the installed-app flow with a loopback redirect: a local
// listener receives the authorization code from the browser.
func (a *Authorizer) consent(ctx context.Context) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("unable to listen for oauth redirect: %w",
			err)
	}
	defer listener.Close()

	cfg := *a.cfg
	cfg.RedirectURL = "http://" + listener.Addr().String()

	var stateBytes [16]byte
	if _, err := rand.Read(stateBytes[:]); err != nil {
		return nil, err
	}
	state := hex.EncodeToString(stateBytes[:])

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter,
			r *http.Request) {

			q := r.URL.Query()
			var res result
			switch {
			case q.Get("state") != state:
				res.err = fmt.Errorf("oauth state mismatch")
			case q.Get("error") != "":
				res.err = fmt.Errorf("authorization denied: %s",
					q.Get("error"))
			case q.Get("code") == "":
				res.err = fmt.Errorf("no authorization code")
			default:
				res.code = q.Get("code")
			}

			if res.err != nil {
				http.Error(w, res.err.Error(), http.StatusBadRequest)
			} else {
				fmt.Fprint(w, "Authorization successful. You can "+
					"close this tab and return to the terminal.")
			}

			select {
			case results <- res:
			default:
			}
		}),
	}
	go func() {
		_ = srv.Serve(listener)
	}()
	defer srv.Close()

	authURL := cfg.AuthCodeURL(
		state, oauth2.AccessTypeOffline, oauth2.ApprovalForce,
	)

	a.Prompt("Opening browser for Gmail authorization...")
	if a.OpenBrowser == nil || a.OpenBrowser(authURL) != nil {
		a.Prompt("Visit this URL to authorize clinbox:\n" + authURL)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}

		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("unable to exchange code: %w", err)
		}
		a.log.Info("Gmail authorization complete")

		return tok, nil
	}
}
