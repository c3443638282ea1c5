package middleware

import (
	"net/http"
	"time"

	"github.com/platinummonkey/pastebin/pkg/auth"
)

// CookieConfig shapes the session cookies
type CookieConfig struct {
	// Secure sets the cookie Secure attribute; enable behind TLS
	Secure bool
	// RememberMaxAge is the session cookie lifetime under remember-me
	RememberMaxAge time.Duration
	// SecureMaxAge is the secure session cookie lifetime
	SecureMaxAge time.Duration
}

// DefaultCookieConfig returns 30 day remember-me and 15 minute secure cookies
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		RememberMaxAge: 30 * 24 * time.Hour,
		SecureMaxAge:   15 * time.Minute,
	}
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionCookie lives for the browser session unless remember is set
func (c CookieConfig) SessionCookie(token string, remember bool) *http.Cookie {
	var maxAge time.Duration
	if remember {
		maxAge = c.RememberMaxAge
	}
	return c.cookie(auth.CookieSession, token, maxAge)
}

// SecureSessionCookie always expires after SecureMaxAge
func (c CookieConfig) SecureSessionCookie(token string) *http.Cookie {
	return c.cookie(auth.CookieSecureSession, token, c.SecureMaxAge)
}

// SetSession writes the cookie for a freshly issued session token
func (c CookieConfig) SetSession(w http.ResponseWriter, token string, secure, remember bool) {
	if secure {
		http.SetCookie(w, c.SecureSessionCookie(token))
		return
	}
	http.SetCookie(w, c.SessionCookie(token, remember))
}

// SetPair writes both cookies after a credential change rotated them
func (c CookieConfig) SetPair(w http.ResponseWriter, pair auth.SessionPair, remember bool) {
	http.SetCookie(w, c.SessionCookie(pair.Insecure, remember))
	http.SetCookie(w, c.SecureSessionCookie(pair.Secure))
}

// Clear expires both session cookies
func (c CookieConfig) Clear(w http.ResponseWriter) {
	for _, name := range []string{auth.CookieSession, auth.CookieSecureSession} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}
