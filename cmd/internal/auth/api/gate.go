package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/identity"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/session"
)

// Principal is who a request acts as: Anonymous or Authenticated.
type Principal interface {
	principal()
}

// Anonymous is the Principal of a request that never passed the gate.
type Anonymous struct{}

// Authenticated is the Principal attached by Gate.RequireAuth.
type Authenticated struct {
	SubjectID string
	Claims    session.Claims
	User      identity.User
}

func (Anonymous) principal()     {}
func (Authenticated) principal() {}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the attached Principal, or Anonymous.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok && p != nil {
		return p
	}
	return Anonymous{}
}

// AuthenticatedFromContext is PrincipalFromContext narrowed to Authenticated.
func AuthenticatedFromContext(ctx context.Context) (Authenticated, bool) {
	a, ok := PrincipalFromContext(ctx).(Authenticated)
	return a, ok
}

// Rejection is why the gate refused a request.
type Rejection string

const (
	NoCredential     Rejection = "no_credential"
	Expired          Rejection = "token_expired"
	InvalidSignature Rejection = "token_invalid"
	Malformed        Rejection = "token_malformed"
	StaleCredential  Rejection = "stale_credential"
)

func (r Rejection) message() string {
	switch r {
	case NoCredential:
		return "access denied: no authentication token provided"
	case Expired:
		return "token has expired, please log in again"
	case InvalidSignature:
		return "invalid token"
	case Malformed:
		return "malformed token"
	case StaleCredential:
		return "user not found, token is no longer valid"
	default:
		return "unauthorized"
	}
}

// TokenVerifier is satisfied by *session.Manager.
type TokenVerifier interface {
	Verify(raw string, now time.Time) (session.Claims, error)
}

// UserFinder is the slice of identity.Store the gate needs.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
}

// Gate authenticates requests before they reach protected handlers.
type Gate struct {
	log       *slog.Logger
	transport transport
	tokens    TokenVerifier
	users     UserFinder
	rec       Recorder
	maxBody   int64
	now       func() time.Time
}

func newGate(log *slog.Logger, t transport, tokens TokenVerifier, users UserFinder, rec Recorder, maxBody int64, now func() time.Time) *Gate {
	return &Gate{
		log:       log,
		transport: t,
		tokens:    tokens,
		users:     users,
		rec:       rec,
		maxBody:   maxBody,
		now:       now,
	}
}

// RequireAuth runs next only for requests carrying a valid token whose
// subject still exists. The resolved Principal is attached to the context.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, rej, err := g.authenticate(r)
		if err != nil {
			g.log.ErrorContext(r.Context(), "auth.gate.lookup.fail", "err", err)
			writeServerError(w)
			return
		}
		if rej != "" {
			g.rec.GateRejected(string(rej))
			writeError(w, http.StatusUnauthorized, string(rej), rej.message())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (g *Gate) authenticate(r *http.Request) (Authenticated, Rejection, error) {
	raw := g.extract(r)
	if raw == "" {
		return Authenticated{}, NoCredential, nil
	}

	claims, err := g.tokens.Verify(raw, g.now())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenExpired):
			return Authenticated{}, Expired, nil
		case errors.Is(err, session.ErrTokenMalformed):
			return Authenticated{}, Malformed, nil
		default:
			return Authenticated{}, InvalidSignature, nil
		}
	}

	user, err := g.users.FindByID(r.Context(), claims.SubjectID)
	if err != nil {
		if identity.IsNotFound(err) {
			return Authenticated{}, StaleCredential, nil
		}
		return Authenticated{}, "", err
	}

	return Authenticated{SubjectID: claims.SubjectID, Claims: claims, User: user}, "", nil
}

// extract returns the first token found in: signed jwt cookie, token cookie,
// bearer header, JSON body field "token".
func (g *Gate) extract(r *http.Request) string {
	if v, ok := g.transport.sessionFromCookie(r); ok {
		return v
	}
	if v, ok := g.transport.mirrorFromCookie(r); ok {
		return v
	}
	if v := bearerToken(r); v != "" {
		return v
	}
	return g.bodyToken(r)
}

// bodyToken peeks at a JSON body and puts it back so the next handler can
// read it again.
func (g *Gate) bodyToken(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, g.maxBody))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil {
		return ""
	}

	var body struct {
		Token string `json:"token"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.Token)
}

type readCloser struct {
	io.Reader
	io.Closer
}
