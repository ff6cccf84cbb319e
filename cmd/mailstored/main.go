// Command mailstored runs the reference mail store server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhle/webmail/internal/ai"
	"github.com/nhle/webmail/internal/logging"
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/server"
	"github.com/nhle/webmail/internal/store"
)

const sessionSweepInterval = time.Hour

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "mailstored:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret (WEBMAIL_SERVER_JWT_SECRET) is required")
	}

	st, err := store.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.Server.AIKey != "" {
		opts = append(opts, server.WithWriter(ai.NewWriter(cfg.Server.AIKey, cfg.Server.AIModel, 0)))
	} else {
		logger.Info("AI drafting disabled; set WEBMAIL_AI_KEY to enable")
	}

	srv := server.New(st, server.Config{
		JWTSecret:     cfg.Server.JWTSecret,
		AccessTTL:     cfg.Server.AccessTTL,
		RefreshTTL:    cfg.Server.RefreshTTL,
		SecureCookies: cfg.Server.SecureCookies,
	}, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, st, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mail store listening", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// sweepSessions deletes expired refresh sessions until ctx is done.
func sweepSessions(ctx context.Context, st store.Store, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.DeleteExpiredSessions(ctx, now)
			if err != nil {
				logger.Warn("sweeping sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept expired sessions", "count", n)
			}
		}
	}
}
