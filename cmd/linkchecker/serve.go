package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/delivery/http/handler"
	"github.com/user/linkchecker-service/internal/delivery/http/router"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/usecase"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the report API and the scheduled scan and check runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	sched := newScheduler(a.log)
	if err := schedule(sched, a, a.cfg.ScanSchedule, entity.RunScan, a.scanner.StartScan); err != nil {
		return err
	}
	if err := schedule(sched, a, a.cfg.CheckSchedule, entity.RunCheck, a.scanner.StartCheck); err != nil {
		return err
	}
	sched.Start()

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + a.cfg.ServerPort,
		Handler:      router.New(handler.NewHandler(a.scanner, a.report, a.log), a.log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Starting server", zap.String("port", a.cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		<-sched.Stop().Done()
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("HTTP server shutdown", zap.Error(err))
	}
	a.scanner.Shutdown()
	<-sched.Stop().Done()
	return nil
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// newScheduler returns a cron whose jobs recover from panics.
func newScheduler(log *zap.Logger) *cron.Cron {
	logger := cronLogger{log: log.Sugar()}
	return cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))
}

// schedule registers a cron entry that starts a background run of one kind.
// An empty expression disables it.
func schedule(c *cron.Cron, a *app, expr string, kind entity.RunKind, run func(context.Context) (*entity.ScanRun, error)) error {
	if expr == "" {
		return nil
	}
	_, err := c.AddFunc(expr, func() {
		_, err := run(context.Background())
		switch {
		case errors.Is(err, usecase.ErrRunInProgress):
			a.log.Info("Skipping scheduled run, previous one still going", zap.String("kind", string(kind)))
		case err != nil:
			a.log.Error("Scheduled run failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	a.log.Info("Scheduled run", zap.String("kind", string(kind)), zap.String("schedule", expr))
	return nil
}
