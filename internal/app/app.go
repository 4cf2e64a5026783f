// Package app builds the client components and wires them together.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"garage-client/internal/api"
	"garage-client/internal/config"
	"garage-client/internal/guard"
	"garage-client/internal/metrics"
	"garage-client/internal/model"
	"garage-client/internal/notification"
	"garage-client/internal/realtime"
	"garage-client/internal/session"
	"garage-client/internal/socketio"
	"garage-client/internal/toast"
	"garage-client/internal/tokenstore"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Config config.Client
	Logger *slog.Logger
	Clock  clockwork.Clock

	// Store defaults to a file at Config.TokenFile.
	Store      tokenstore.Store
	Navigator  session.Navigator
	HTTPClient *http.Client

	// Routes overrides Config.RoutesFile.
	Routes     guard.Table
	Registerer prometheus.Registerer
}

type App struct {
	API           *api.Client
	Session       *session.Manager
	Channel       *realtime.Channel
	Notifications *notification.Center
	Toasts        *toast.Scheduler
	Guard         *guard.Guard
	Metrics       *metrics.Metrics

	cfg    config.Client
	clock  clockwork.Clock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()

	mu         sync.Mutex
	liveToken  string
	cancelLive context.CancelFunc
	closed     bool
}

func New(opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Store == nil {
		opts.Store = tokenstore.NewFile(opts.Config.TokenFile)
	}
	cfg := opts.Config
	logger := opts.Logger

	routes := opts.Routes
	if routes == nil && cfg.RoutesFile != "" {
		loaded, err := guard.LoadTableFile(cfg.RoutesFile)
		if err != nil {
			return nil, err
		}
		routes = loaded
	}
	policy, err := guard.ParseRolePolicy(cfg.RolePolicy)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(api.Options{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.HTTPTimeout,
		HTTPClient: opts.HTTPClient,
		Logger:     logger.With("component", "api"),
	})
	toasts := toast.NewScheduler(toast.Options{
		Clock:    opts.Clock,
		Duration: cfg.ToastTTL,
		Logger:   logger.With("component", "toast"),
	})
	dialer := socketio.NewDialer(socketio.DialerOptions{
		URL:    cfg.SocketURL,
		Logger: logger.With("component", "socketio"),
	})
	channel := realtime.NewChannel(realtime.SocketIO{Dialer: dialer}, logger.With("component", "realtime"))
	center := notification.NewCenter(client, channel, toasts, logger.With("component", "notification"))
	manager := session.NewManager(session.Options{
		Backend:   client,
		Store:     opts.Store,
		Realtime:  channel,
		Navigator: opts.Navigator,
		Clock:     opts.Clock,
		Logger:    logger.With("component", "session"),
	})
	client.SetCredentials(manager)

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		API:           client,
		Session:       manager,
		Channel:       channel,
		Notifications: center,
		Toasts:        toasts,
		Guard: guard.New(guard.Options{
			Table:   routes,
			Session: manager,
			Policy:  policy,
			Logger:  logger.With("component", "guard"),
		}),
		Metrics: metrics.New(opts.Registerer),
		cfg:     cfg,
		clock:   opts.Clock,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	m := a.Metrics
	a.unsubs = append(a.unsubs,
		a.Session.Subscribe(a.onSession),
		a.Session.Subscribe(m.ObserveSession),
		a.Notifications.Subscribe(func(s notification.Snapshot) { m.ObserveUnread(s.UnreadCount) }),
		a.Toasts.SubscribeShown(m.ObserveToast),
		a.Channel.Subscribe(func(s realtime.Status) { m.ObserveRealtime(s.State) }),
		a.Channel.SubscribeErrors(m.ObserveTransportError),
	)
	m.ObserveRealtime(model.ConnDisconnected)
}

// onSession loads notifications for every newly authenticated token and
// drops them when the session ends. A load still running for the previous
// token is cancelled.
func (a *App) onSession(s model.Session) {
	a.mu.Lock()
	if a.closed || s.Token == a.liveToken {
		a.mu.Unlock()
		return
	}
	previous := a.liveToken
	a.liveToken = s.Token
	if a.cancelLive != nil {
		a.cancelLive()
		a.cancelLive = nil
	}
	var ctx context.Context
	if s.Token != "" {
		ctx, a.cancelLive = context.WithCancel(a.ctx)
	}
	a.mu.Unlock()

	if previous != "" {
		a.Notifications.Reset()
	}
	if s.Token == "" {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Notifications.Initialize(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("notifications: initial fetch failed", "error", err)
		}
	}()
}

// Start restores the persisted session. See session.Manager.Initialize.
func (a *App) Start(ctx context.Context) <-chan error {
	return a.Session.Initialize(ctx)
}

// Run blocks until ctx is done. With a refresh interval it periodically
// refetches unread notifications and rebinds a dropped realtime channel.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.RefreshInterval > 0 {
		g.Go(func() error {
			ticker := a.clock.NewTicker(a.cfg.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.Chan():
					a.Refresh(ctx)
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// Refresh refetches the unread set. If a transport failure left the realtime
// channel disconnected it is reconnected and the push handler reinstalled.
func (a *App) Refresh(ctx context.Context) {
	token := a.Session.Token()
	if token == "" {
		return
	}
	var err error
	if a.Channel.State() == model.ConnDisconnected {
		a.logger.Info("realtime: reconnecting")
		a.Channel.Connect(token)
		err = a.Notifications.Initialize(ctx)
	} else {
		err = a.Notifications.FetchUnread(ctx)
	}
	if err != nil {
		a.logger.Warn("notifications: refresh failed", "error", err)
	}
}

// Close releases the realtime connection and pending timers. The persisted
// token is kept for the next start.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	for i := len(a.unsubs) - 1; i >= 0; i-- {
		a.unsubs[i]()
	}
	a.Channel.Disconnect()
	a.Toasts.Close()
	a.wg.Wait()
}
