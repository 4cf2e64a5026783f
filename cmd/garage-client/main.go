// garage-client keeps a garage session alive from the terminal: it restores
// or creates the session, follows realtime notifications and logs every toast
// the client would show.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garage-client/internal/app"
	"garage-client/internal/config"
	"garage-client/internal/logging"
	"garage-client/internal/metrics"
	"garage-client/internal/model"
	"garage-client/internal/notification"
	"garage-client/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var email, password, check string
	var logout bool

	flagSet := pflag.NewFlagSet("garage-client", pflag.ContinueOnError)
	flagSet.StringVar(&email, "email", "", "log in with this account before following notifications")
	flagSet.StringVar(&password, "password", "", "password for --email (default: $GARAGE_PASSWORD)")
	flagSet.BoolVar(&logout, "logout", false, "end the persisted session and exit")
	flagSet.StringVar(&check, "check", "", "print the navigation decision for a destination and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if password == "" {
		password = os.Getenv("GARAGE_PASSWORD")
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	a, err := app.New(app.Options{
		Config: cfg,
		Logger: logger,
		Navigator: session.NavigatorFunc(func(destination string) {
			logger.Info("navigate", "destination", destination)
		}),
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := <-a.Start(ctx); err != nil {
		logger.Warn("restoring session failed", "error", err)
	}

	if logout {
		a.Session.Logout()
		return nil
	}
	if email != "" {
		if err := a.Session.Login(ctx, email, password); err != nil {
			return err
		}
	}
	if check != "" {
		d := a.Guard.Check(check)
		if d.Proceed() {
			fmt.Println("proceed")
		} else {
			fmt.Println("redirect", d.Redirect)
		}
		return nil
	}

	if !a.Session.Snapshot().Authenticated() {
		return errors.New("not logged in; pass --email")
	}
	follow(a, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr, reg, logger) })
	}
	return g.Wait()
}

func follow(a *app.App, logger *slog.Logger) {
	a.Toasts.SubscribeShown(func(t model.Toast) {
		logger.Info("toast", "severity", t.Severity, "message", t.Message)
	})
	a.Notifications.Subscribe(func(s notification.Snapshot) {
		logger.Info("unread notifications", "count", s.UnreadCount)
	})
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("metrics listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
