package authapi

import (
	"context"
	"log/slog"
	"net"

	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

// Recorder receives counters for auth outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	Auth(event, outcome string)
	GateRejected(reason string)
	RateLimited(rule string)
	CodeIssued(retries int)
	CodeVerified(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Auth(string, string) {}
func (nopRecorder) GateRejected(string) {}
func (nopRecorder) RateLimited(string)  {}
func (nopRecorder) CodeIssued(int)      {}
func (nopRecorder) CodeVerified(string) {}

// Audit events go to the structured log. Emails are fingerprinted, never
// written in clear.

func (h *Handler) auditSignup(ctx context.Context, userID string, ip net.IP) {
	h.audit(ctx, "auth.signup.success", slog.String("user_id", userID), ipAttr(ip))
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, ip net.IP) {
	h.audit(ctx, "auth.login.success", slog.String("user_id", userID), ipAttr(ip))
}

func (h *Handler) auditLoginFailed(ctx context.Context, email string, ip net.IP, reason string) {
	h.audit(ctx, "auth.login.failed",
		slog.String("email_fp", token.Fingerprint(email)),
		ipAttr(ip),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLogout(ctx context.Context, ip net.IP) {
	h.audit(ctx, "auth.logout", ipAttr(ip))
}

func (h *Handler) auditCodeIssued(ctx context.Context, email string, attempts int, ip net.IP) {
	h.audit(ctx, "auth.otp.issued",
		slog.String("email_fp", token.Fingerprint(email)),
		slog.Int("attempts", attempts),
		ipAttr(ip),
	)
}

func (h *Handler) auditCodeVerified(ctx context.Context, email string, ok bool) {
	h.audit(ctx, "auth.otp.verify",
		slog.String("email_fp", token.Fingerprint(email)),
		slog.Bool("ok", ok),
	)
}

func (h *Handler) audit(ctx context.Context, action string, attrs ...slog.Attr) {
	h.log.LogAttrs(ctx, slog.LevelInfo, action, attrs...)
}

func ipAttr(ip net.IP) slog.Attr {
	return slog.String("ip", ipKey(ip))
}
