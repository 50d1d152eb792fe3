package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/secureauth.
// It returns an error instead of calling os.Exit so defers still run.
func Run() error {
	s, err := LoadSettings()
	if err != nil {
		return err
	}
	log := NewLogger(s.App.LogLevel, s.App.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, s, log)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return err
	}

	return a.Run(ctx)
}
