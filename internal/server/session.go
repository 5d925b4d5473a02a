package server

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	StateCookie        = "oauth_state"

	refreshTokenTTL = 30 * 24 * time.Hour
	defaultTokenTTL = time.Hour
	stateTTL        = 10 * time.Minute
)

// SessionCookies issues and clears the cookies that carry a browser or CLI session.
type SessionCookies struct {
	Domain string
	Secure bool
	now    func() time.Time
}

func (c SessionCookies) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c SessionCookies) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Set writes the access token cookie, plus the refresh token cookie when the token carries one.
func (c SessionCookies) Set(w http.ResponseWriter, token *oauth2.Token) {
	ttl := defaultTokenTTL
	if !token.Expiry.IsZero() {
		if d := token.Expiry.Sub(c.clock()); d > 0 {
			ttl = d
		}
	}
	http.SetCookie(w, c.cookie(AccessTokenCookie, token.AccessToken, ttl))

	if token.RefreshToken != "" {
		http.SetCookie(w, c.cookie(RefreshTokenCookie, token.RefreshToken, refreshTokenTTL))
	}
}

// SetState stores the OAuth state for the browser login flow.
func (c SessionCookies) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, c.cookie(StateCookie, state, stateTTL))
}

// ClearState removes the OAuth state cookie.
func (c SessionCookies) ClearState(w http.ResponseWriter) {
	expired := c.cookie(StateCookie, "", 0)
	expired.MaxAge = -1
	http.SetCookie(w, expired)
}

// Clear expires both session cookies.
func (c SessionCookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		expired := c.cookie(name, "", 0)
		expired.MaxAge = -1
		http.SetCookie(w, expired)
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
