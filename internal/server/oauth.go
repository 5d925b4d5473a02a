package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/vinyl/internal/shared"
)

// ExchangeFunc completes a login with the code caught on the local callback.
type ExchangeFunc func(ctx context.Context, code, state string) error

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Code string
	err  error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler catches the provider redirect for the CLI login flow and hands the code to
// an [ExchangeFunc], which forwards it to the facade so the session lands in the CLI's jar.
//
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	exchange    ExchangeFunc
	state       string
	timeout     time.Duration
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler expecting state and completing logins with exchange.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(state string, exchange ExchangeFunc) *OAuthHandler {
	return &OAuthHandler{
		exchange:   exchange,
		state:      state,
		timeout:    15 * time.Second,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates state parameter, forwards the authorization code, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		h.Send(OAuthResult{err: shared.ErrStateMismatch})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.Send(OAuthResult{err: fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, errParam, errDesc)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.exchange(ctx, code, state); err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	h.Send(OAuthResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>vinyl: signed in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #141414; }
        .container { text-align: center; background: #1f1f1f; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.4); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #aaa; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Signed in</h1>
        <p>You can close this window and drop the needle in the terminal.</p>
    </div>
</body>
</html>
`

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
