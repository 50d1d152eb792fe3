package authapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

// Cookie names. jwt is httpOnly and signed when a cookie secret is set;
// token mirrors it for scripts that need to read the session.
const (
	SessionCookieName = "jwt"
	MirrorCookieName  = "token"
)

// transport writes and reads the session cookies.
type transport struct {
	secure bool
	domain string
	signer *token.Signer
}

func newTransport(cfg Config) (transport, error) {
	t := transport{secure: cfg.CookieSecure, domain: strings.TrimSpace(cfg.CookieDomain)}
	if cfg.CookieSecret != "" {
		key, err := token.ParseSecret(cfg.CookieSecret, token.MinSecretBytes)
		if err != nil {
			return transport{}, err
		}
		t.signer = token.NewSigner(key)
	}
	return t, nil
}

func (t transport) setSessionCookies(w http.ResponseWriter, raw string, maxAge time.Duration) {
	sessionValue := raw
	if t.signer != nil {
		sessionValue = t.signer.Sign(raw)
	}
	http.SetCookie(w, t.cookie(SessionCookieName, sessionValue, true, int(maxAge.Seconds())))
	http.SetCookie(w, t.cookie(MirrorCookieName, raw, false, int(maxAge.Seconds())))
}

func (t transport) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{SessionCookieName, MirrorCookieName} {
		c := t.cookie(name, "", name == SessionCookieName, -1)
		c.Expires = time.Unix(0, 0).UTC()
		http.SetCookie(w, c)
	}
}

func (t transport) cookie(name, value string, httpOnly bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   t.domain,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// sessionFromCookie returns the token held in the jwt cookie. A value whose
// signature does not check out is reported as absent.
func (t transport) sessionFromCookie(r *http.Request) (string, bool) {
	v, ok := cookieValue(r, SessionCookieName)
	if !ok {
		return "", false
	}
	if t.signer == nil {
		return v, true
	}
	raw, ok := t.signer.Unsign(v)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

func (t transport) mirrorFromCookie(r *http.Request) (string, bool) {
	return cookieValue(r, MirrorCookieName)
}

func cookieValue(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
