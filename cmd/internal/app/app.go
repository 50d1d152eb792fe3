// Package app wires the secure-auth server runtime: config, logging, backends
// and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asifkhan2513/secure-auth/cmd/identity"
	authapi "github.com/asifkhan2513/secure-auth/cmd/internal/auth/api"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/otp"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/session"
	"github.com/asifkhan2513/secure-auth/cmd/internal/mail"
	"github.com/asifkhan2513/secure-auth/cmd/internal/metrics"
)

// App owns the HTTP server and every long-lived dependency behind it.
type App struct {
	cfg Config
	log Logger

	backends   *backends
	dispatcher *mail.Dispatcher
	metrics    *metrics.Metrics
	auth       *authapi.Handler

	handler http.Handler

	closeOnce sync.Once
}

// New constructs a fully wired App. Backends are chosen from configuration:
// users go to MongoDB, then Postgres, then memory; codes and rate limits go
// to Redis when it is configured, else MongoDB (codes only), else memory.
func New(ctx context.Context, s Settings, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(s.App.LogLevel, s.App.LogFormat)
	}
	if err := ValidateSecurityConfig(s); err != nil {
		return nil, err
	}

	be, err := openBackends(ctx, s.App, log)
	if err != nil {
		return nil, err
	}

	a, err := assemble(ctx, s, log, be)
	if err != nil {
		_ = be.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func assemble(ctx context.Context, s Settings, log Logger, be *backends) (*App, error) {
	m := metrics.New()
	hasher := s.Password

	users, err := newUserStore(ctx, s, be, hasher)
	if err != nil {
		return nil, err
	}
	codes, err := newCodeStore(ctx, s, be)
	if err != nil {
		return nil, err
	}

	limiters := authapi.MemoryLimiters
	if be.redis != nil {
		limiters = func(cfg authapi.Config) (authapi.Limiters, error) {
			return authapi.RedisLimiters(cfg, be.redis, "")
		}
	}
	limits, err := limiters(s.Auth)
	if err != nil {
		return nil, err
	}

	var sender mail.Sender = mail.LogSender{Log: log}
	if s.Mail.Enabled() {
		sender = mail.NewSMTPSender(s.Mail)
	}
	dispatcher := mail.NewDispatcher(s.Mail, sender, log, m.Mail)

	tokens, err := session.NewManager(s.Session)
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	engine, err := otp.NewEngine(s.OTP, codes, users,
		otp.WithNotifier(mail.NewVerificationNotifier(dispatcher)),
		otp.WithLogger(log),
	)
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, s.Auth, authapi.Services{
		Users:  users,
		Hasher: hasher,
		Tokens: tokens,
		Codes:  engine,
	}, authapi.WithLimiters(limits), authapi.WithRecorder(m))
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, s.App, be, m, auth)

	var h http.Handler = mux
	h = WithCORS(h, s.App, log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, log, mux, m)

	log.Info("app.ready",
		"env", s.App.Env,
		"users", userBackend(be),
		"codes", codeBackend(be),
		"smtp", s.Mail.Enabled(),
		"otp_echo", s.OTP.EchoCode,
	)

	return &App{
		cfg:        s.App,
		log:        log,
		backends:   be,
		dispatcher: dispatcher,
		metrics:    m,
		auth:       auth,
		handler:    h,
	}, nil
}

func newUserStore(ctx context.Context, s Settings, be *backends, hasher identity.PasswordHasher) (identity.Store, error) {
	switch {
	case be.mongo != nil:
		return identity.NewMongoStore(ctx, be.mongo.Database(s.App.MongoDB), hasher)
	case be.pg != nil:
		return identity.NewPostgresStore(be.pg, hasher, identity.WithSchema(s.App.DBSchema))
	default:
		return identity.NewMemoryStore(hasher), nil
	}
}

func newCodeStore(ctx context.Context, s Settings, be *backends) (otp.Store, error) {
	switch {
	case be.redis != nil:
		return otp.NewRedisStore(be.redis, s.OTP.RedisPrefix), nil
	case be.mongo != nil:
		return otp.NewMongoStore(ctx, be.mongo.Database(s.App.MongoDB), s.OTP.TTL)
	default:
		return otp.NewMemoryStore(), nil
	}
}

func userBackend(be *backends) string {
	switch {
	case be.mongo != nil:
		return "mongo"
	case be.pg != nil:
		return "postgres"
	default:
		return "memory"
	}
}

func codeBackend(be *backends) string {
	switch {
	case be.redis != nil:
		return "redis"
	case be.mongo != nil:
		return "mongo"
	default:
		return "memory"
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves until ctx is canceled or the listener fails, then drains
// in-flight requests and queued mail before closing backends.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	a.log.Info("server.stopped")
	return err
}

// Close drains the mail queue and releases backends. It is safe to call
// after Run has returned.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.dispatcher.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.backends.Close(ctx); err != nil {
			a.log.Error("backend.close.fail", "err", err)
		}
	})
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
