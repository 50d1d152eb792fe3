package app

import (
	"net/http"

	authapi "github.com/asifkhan2513/secure-auth/cmd/internal/auth/api"
	"github.com/asifkhan2513/secure-auth/cmd/internal/metrics"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	be *backends,
	m *metrics.Metrics,
	auth *authapi.Handler,
) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireStore && !be.persistent() {
			http.Error(w, "store not configured", http.StatusServiceUnavailable)
			return
		}

		if err := be.Ping(r.Context()); err != nil {
			http.Error(w, "backend not ready", http.StatusServiceUnavailable)
			log.Info("readyz.not_ready", "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if cfg.MetricsEnabled && m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	auth.Register(mux)
}
