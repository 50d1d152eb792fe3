package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/identity"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/otp"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/session"
	"github.com/asifkhan2513/secure-auth/cmd/internal/metrics"
	"github.com/asifkhan2513/secure-auth/cmd/security/password"
)

// Services are the collaborators every Handler needs.
type Services struct {
	Users  identity.Store
	Hasher identity.PasswordHasher
	Tokens *session.Manager
	Codes  *otp.Engine
}

// Handler wires HTTP auth endpoints to the identity, session and otp packages.
type Handler struct {
	log *slog.Logger
	cfg Config

	users  identity.Store
	hasher identity.PasswordHasher
	tokens *session.Manager
	codes  *otp.Engine

	transport transport
	gate      *Gate
	limits    Limiters
	rec       Recorder
	now       func() time.Time

	dummyHash string
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLimiters enables rate limiting. Without it nothing is throttled.
func WithLimiters(l Limiters) HandlerOption {
	return func(h *Handler) { h.limits = l }
}

// WithRecorder sets where outcome counters go.
func WithRecorder(rec Recorder) HandlerOption {
	return func(h *Handler) {
		if rec != nil {
			h.rec = rec
		}
	}
}

// WithClock replaces time.Now for token issuance and verification.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, svc Services, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc.Users == nil || svc.Hasher == nil || svc.Tokens == nil || svc.Codes == nil {
		return nil, errors.New("auth: users, hasher, tokens and codes are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.RoutePrefix = normalizePrefix(cfg.RoutePrefix)

	t, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		users:     svc.Users,
		hasher:    svc.Hasher,
		tokens:    svc.Tokens,
		codes:     svc.Codes,
		transport: t,
		rec:       nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	h.gate = newGate(log, t, svc.Tokens, svc.Users, h.rec, cfg.MaxBodyBytes, h.now)

	// Dummy hash for timing-resistant login checks.
	if hash, err := svc.Hasher.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Gate returns the auth gate so other routes can be protected the same way.
func (h *Handler) Gate() *Gate { return h.gate }

// Register wires auth routes onto the provided mux under the route prefix.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	p := h.cfg.RoutePrefix
	mux.HandleFunc("POST "+p+"/signup", h.handleSignup)
	mux.HandleFunc("POST "+p+"/login", h.handleLogin)
	mux.HandleFunc("POST "+p+"/logout", h.handleLogout)
	mux.HandleFunc("POST "+p+"/sendotp", h.handleSendOTP)
	mux.HandleFunc("POST "+p+"/verifyotp", h.handleVerifyOTP)
	mux.Handle("GET "+p+"/profile", h.gate.RequireAuth(http.HandlerFunc(h.handleProfile)))
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}

	name := identity.NormalizeName(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name, email and password are required")
		return
	}
	if !identity.ValidEmail(email) {
		writeError(w, http.StatusBadRequest, "invalid_email", "email is invalid")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	now := h.now().UTC()

	// Cheap pre-check; Create still enforces uniqueness for concurrent signups.
	if _, err := h.users.FindByEmail(ctx, email); err == nil {
		h.rec.Auth("signup", metrics.OutcomeConflict)
		writeError(w, http.StatusBadRequest, "user_exists", "user already exists")
		return
	} else if !identity.IsNotFound(err) {
		h.log.ErrorContext(ctx, "auth.signup.lookup.fail", "err", err)
		writeServerError(w)
		return
	}

	user, err := h.users.Create(ctx, identity.CreateUserInput{
		Name:     name,
		Email:    email,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		var opErr identity.OpError
		switch {
		case identity.IsConflict(err):
			h.rec.Auth("signup", metrics.OutcomeConflict)
			writeError(w, http.StatusBadRequest, "user_exists", "user already exists")
		case password.IsPolicyViolation(err):
			h.rec.Auth("signup", metrics.OutcomeInvalid)
			writeError(w, http.StatusBadRequest, "weak_password", policyMessage(err))
		case identity.IsInvalidInput(err) && errors.As(err, &opErr):
			h.rec.Auth("signup", metrics.OutcomeInvalid)
			writeError(w, http.StatusBadRequest, "invalid_request", opErr.Msg)
		default:
			h.rec.Auth("signup", metrics.OutcomeError)
			h.log.ErrorContext(ctx, "auth.signup.create.fail", "err", err)
			writeServerError(w)
		}
		return
	}

	raw, ok := h.issue(w, r, user)
	if !ok {
		return
	}

	h.rec.Auth("signup", metrics.OutcomeOK)
	h.auditSignup(ctx, user.ID, ip)
	writeJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Message: "user registered successfully",
		User:    toUserResponse(user),
		Token:   raw,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	// IP-based throttling before DB lookup.
	if !h.hit(ctx, w, RuleLoginIP, ipKey(ip)) {
		h.rec.Auth("login", metrics.OutcomeLimited)
		return
	}
	// Per-email failure budget, checked without spending an attempt.
	if !h.peek(ctx, w, RuleLoginFail, email) {
		h.rec.Auth("login", metrics.OutcomeLimited)
		return
	}

	ua, err := h.users.FindByEmailWithSecret(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.ErrorContext(ctx, "auth.login.lookup.fail", "err", err)
			writeServerError(w)
			return
		}
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_ = h.hasher.Matches(h.dummyHash, req.Password)
		}
		h.loginFailed(w, r, email, ip, "not_found")
		return
	}

	if !h.hasher.Matches(ua.PasswordHash, req.Password) {
		h.loginFailed(w, r, email, ip, "bad_password")
		return
	}

	h.reset(ctx, RuleLoginFail, email)

	raw, ok := h.issue(w, r, ua.User)
	if !ok {
		return
	}

	h.rec.Auth("login", metrics.OutcomeOK)
	h.auditLoginSuccess(ctx, ua.User.ID, ip)
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Message: "logged in successfully",
		User:    toUserResponse(ua.User),
		Token:   raw,
	})
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, email string, ip net.IP, reason string) {
	ctx := r.Context()
	h.record(ctx, RuleLoginFail, email)
	h.rec.Auth("login", metrics.OutcomeRejected)
	h.auditLoginFailed(ctx, email, ip, reason)
	writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.transport.clearSessionCookies(w)
	h.rec.Auth("logout", metrics.OutcomeOK)
	h.auditLogout(r.Context(), clientIP(r, h.cfg.TrustProxy))
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "logged out successfully"})
}

func (h *Handler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	email := identity.NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	if !h.hit(ctx, w, RuleOTPIP, ipKey(ip)) || !h.hit(ctx, w, RuleOTPEmail, email) {
		return
	}

	issued, err := h.codes.RequestCode(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "invalid_email", "email is invalid")
		case errors.Is(err, otp.ErrAlreadyRegistered):
			writeError(w, http.StatusUnauthorized, "already_registered", "user is already registered")
		default:
			h.log.ErrorContext(ctx, "auth.otp.request.fail", "err", err)
			writeServerError(w)
		}
		return
	}

	h.rec.CodeIssued(issued.Attempts - 1)
	h.auditCodeIssued(ctx, email, issued.Attempts, ip)

	resp := sendOTPResponse{Success: true, Message: "OTP sent successfully"}
	if h.codes.Config().EchoCode {
		resp.OTP = issued.Code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	email := identity.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.OTP)
	if email == "" || code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and otp are required")
		return
	}

	ctx := r.Context()
	if !h.hit(ctx, w, RuleOTPVerify, email) {
		return
	}

	err := h.codes.VerifyCode(ctx, email, code)
	switch {
	case err == nil:
	case errors.Is(err, otp.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email", "email is invalid")
		return
	case errors.Is(err, otp.ErrCodeInvalid):
		h.rec.CodeVerified(metrics.OutcomeRejected)
		h.auditCodeVerified(ctx, email, false)
		writeError(w, http.StatusBadRequest, "invalid_otp", "invalid or expired code")
		return
	default:
		h.rec.CodeVerified(metrics.OutcomeError)
		h.log.ErrorContext(ctx, "auth.otp.verify.fail", "err", err)
		writeServerError(w)
		return
	}

	h.reset(ctx, RuleOTPVerify, email)
	h.rec.CodeVerified(metrics.OutcomeOK)
	h.auditCodeVerified(ctx, email, true)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "email verified successfully"})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := AuthenticatedFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, string(NoCredential), NoCredential.message())
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Success: true,
		Message: "profile accessed successfully",
		User:    toUserResponse(p.User),
	})
}

// ---- helpers ----

// issue signs a token for user and sets the session cookies.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, user identity.User) (string, bool) {
	raw, _, err := h.tokens.Issue(user.ID, h.now())
	if err != nil {
		h.log.ErrorContext(r.Context(), "auth.token.issue.fail", "err", err)
		writeServerError(w)
		return "", false
	}
	h.transport.setSessionCookies(w, raw, h.tokens.TTL())
	return raw, true
}

func policyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "password is too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password is too long"
	default:
		return "password is too weak"
	}
}
