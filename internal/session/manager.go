// Package session owns the authenticated identity of the client and drives
// the realtime channel from it.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"garage-client/internal/apierr"
	"garage-client/internal/auth"
	"garage-client/internal/hub"
	"garage-client/internal/model"
	"garage-client/internal/tokenstore"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const DefaultLoginDestination = "/login"

type Backend interface {
	Login(ctx context.Context, email, password string) (model.LoginResult, error)
	GetProfile(ctx context.Context) (model.UserProfile, error)
}

// Realtime is the part of the push channel the session controls.
type Realtime interface {
	Connect(token string)
	Disconnect()
}

type Navigator interface {
	Navigate(destination string)
}

type NavigatorFunc func(destination string)

func (f NavigatorFunc) Navigate(destination string) { f(destination) }

type Options struct {
	Backend   Backend
	Store     tokenstore.Store
	Realtime  Realtime
	Navigator Navigator
	// LoginDestination is where Logout sends the navigator.
	LoginDestination string
	Clock            clockwork.Clock
	Logger           *slog.Logger
}

type Manager struct {
	backend   Backend
	store     tokenstore.Store
	realtime  Realtime
	navigator Navigator
	loginDest string
	clock     clockwork.Clock
	logger    *slog.Logger

	// transition serializes session changes together with their side effects
	// on the store, the realtime channel, observers and the navigator. It is
	// taken before mu.
	transition sync.Mutex
	mu         sync.Mutex
	session    model.Session

	profiles singleflight.Group
	changes  *hub.Hub[model.Session]
}

func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = tokenstore.NewMemory("")
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	if opts.LoginDestination == "" {
		opts.LoginDestination = DefaultLoginDestination
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		backend:   opts.Backend,
		store:     opts.Store,
		realtime:  opts.Realtime,
		navigator: opts.Navigator,
		loginDest: opts.LoginDestination,
		clock:     opts.Clock,
		logger:    opts.Logger,
		session:   model.Session{State: model.SessionAnonymous},
		changes:   hub.New[model.Session](),
	}
}

// Initialize restores a persisted token, binds the realtime channel to it and
// starts the profile fetch before returning. The returned channel yields the
// outcome of that fetch and is then closed. Only an authorization loss
// during hydration ends the session.
func (m *Manager) Initialize(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	token, err := m.store.Load()
	if err != nil {
		m.logger.Error("session: load persisted token", "error", err)
		result <- apierr.Internal("load persisted token", err)
		close(result)
		return result
	}
	if token == "" {
		close(result)
		return result
	}
	if auth.Expired(token, m.clock.Now()) {
		m.logger.Info("session: persisted token expired")
		m.teardown("")
		result <- apierr.AuthorizationLost(0, "persisted token expired")
		close(result)
		return result
	}

	m.transition.Lock()
	m.mu.Lock()
	m.session = model.Session{Token: token, State: model.SessionAuthenticated}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.realtime.Connect(token)
	m.changes.Broadcast(snap)
	m.transition.Unlock()

	go func() {
		defer close(result)
		if _, err := m.RefreshProfile(ctx); err != nil {
			m.logger.Warn("session: profile hydration failed", "error", err)
			result <- err
		}
	}()
	return result
}

// Login authenticates and on success persists the token and reconnects the
// realtime channel. A failed attempt restores the previous session untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apierr.Validation("email and password are required")
	}

	m.transition.Lock()
	m.mu.Lock()
	prev := m.session
	m.session.State = model.SessionAuthenticating
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.changes.Broadcast(snap)
	m.transition.Unlock()

	res, err := m.backend.Login(ctx, email, password)
	if err == nil && res.Token == "" {
		err = apierr.Validation("login response carried no token")
	}
	if err != nil {
		m.transition.Lock()
		m.mu.Lock()
		if m.session.State == model.SessionAuthenticating {
			m.session = prev
		}
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.changes.Broadcast(snap)
		m.transition.Unlock()
		m.logger.Info("session: login failed", "email", email, "error", err)
		return err
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	if err := m.store.Save(res.Token); err != nil {
		m.logger.Warn("session: persist token", "error", err)
	}

	user := res.User
	m.mu.Lock()
	m.session = model.Session{Token: res.Token, User: &user, State: model.SessionAuthenticated}
	snap = m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("session: logged in", "user_id", user.ID, "role", user.Role)
	m.realtime.Connect(res.Token)
	m.changes.Broadcast(snap)
	return nil
}

func (m *Manager) Logout() {
	m.teardown("")
	m.logger.Info("session: logged out")
}

// AuthorizationLost ends the session when token is still the current one.
// Rejections of an earlier credential are ignored.
func (m *Manager) AuthorizationLost(token string) {
	if token == "" {
		return
	}
	if m.teardown(token) {
		m.logger.Warn("session: authorization lost")
	}
}

// RefreshProfile refetches the profile of the current token. Concurrent
// calls for the same token share one request.
func (m *Manager) RefreshProfile(ctx context.Context) (model.UserProfile, error) {
	token := m.Token()
	if token == "" {
		return model.UserProfile{}, apierr.Validation("not authenticated")
	}

	v, err, _ := m.profiles.Do(token, func() (any, error) {
		return m.backend.GetProfile(ctx)
	})
	if err != nil {
		if apierr.IsKind(err, apierr.KindAuthorizationLost) {
			m.AuthorizationLost(token)
		}
		return model.UserProfile{}, err
	}
	user := v.(model.UserProfile)

	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.session.Token != token {
		m.mu.Unlock()
		m.logger.Debug("session: discarding profile for replaced token")
		return user, nil
	}
	m.session.User = &user
	m.session.State = model.SessionAuthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.changes.Broadcast(snap)
	return user, nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Token
}

// Subscribe registers fn for session changes. Observers of a new token run
// after the realtime channel has been bound to it, so handlers they install
// are not cleared by the rebind. Observers run inside the transition and must
// not call Login, Logout or AuthorizationLost synchronously.
func (m *Manager) Subscribe(fn func(model.Session)) (unsubscribe func()) {
	return m.changes.Register(fn)
}

// teardown clears the session. With a non-empty expect it only acts while
// expect is the current token, and reports whether it did.
func (m *Manager) teardown(expect string) bool {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if expect != "" && m.session.Token != expect {
		m.mu.Unlock()
		return false
	}
	m.session = model.Session{State: model.SessionAnonymous}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("session: clear persisted token", "error", err)
	}
	m.realtime.Disconnect()
	m.changes.Broadcast(snap)
	m.navigator.Navigate(m.loginDest)
	return true
}

func (m *Manager) snapshotLocked() model.Session {
	s := m.session
	if s.User != nil {
		user := *s.User
		s.User = &user
	}
	return s
}
