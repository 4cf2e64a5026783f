// Package store is the in-memory state of the development backend: user
// accounts and per-user notifications.
package store

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"garage-client/internal/model"
)

var ErrEmailTaken = errors.New("email already registered")

type Store struct {
	mu sync.RWMutex

	stateFile string
	persistMu sync.Mutex
	logger    *slog.Logger

	usersByID     map[int64]account
	userIDByEmail map[string]int64
	nextUserID    int64

	notifications *notificationLog
	seq           *seqGenerator
}

type account struct {
	profile  model.UserProfile
	password string
}

func New() *Store {
	return NewWithOptions(Options{})
}

type Options struct {
	// StateFile, when set, persists notifications across restarts.
	StateFile string
	Logger    *slog.Logger
}

func NewWithOptions(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		stateFile:     opts.StateFile,
		logger:        opts.Logger,
		usersByID:     make(map[int64]account),
		userIDByEmail: make(map[string]int64),
		notifications: newNotificationLog(),
		seq:           newSeqGenerator(),
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			s.logger.Warn("store persistence: load failed", "file", s.stateFile, "error", err)
		}
	}

	return s
}

// AddUser registers a user. A zero profile ID is assigned.
func (s *Store) AddUser(profile model.UserProfile, password string) (model.UserProfile, error) {
	email := normalizeEmail(profile.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userIDByEmail[email]; ok {
		return model.UserProfile{}, ErrEmailTaken
	}
	if profile.ID == 0 {
		s.nextUserID++
		profile.ID = s.nextUserID
	} else if profile.ID > s.nextUserID {
		s.nextUserID = profile.ID
	}
	profile.Role = model.ParseRole(string(profile.Role))
	if profile.Role == "" {
		profile.Role = model.RoleClient
	}

	s.usersByID[profile.ID] = account{profile: profile, password: password}
	s.userIDByEmail[email] = profile.ID
	return profile, nil
}

// Authenticate checks email and password. Locked accounts never authenticate.
func (s *Store) Authenticate(email, password string) (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[normalizeEmail(email)]
	if !ok {
		return model.UserProfile{}, false
	}
	acc := s.usersByID[id]
	if subtle.ConstantTimeCompare([]byte(acc.password), []byte(password)) != 1 {
		return model.UserProfile{}, false
	}
	if acc.profile.Locked {
		return model.UserProfile{}, false
	}
	return acc.profile, true
}

func (s *Store) GetUser(id int64) (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.usersByID[id]
	return acc.profile, ok
}

// AddNotification stores n for userID, assigning its id and creation time.
func (s *Store) AddNotification(userID int64, n model.Notification, now time.Time) model.Notification {
	n.ID = s.seq.next()
	n.Read = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now.UTC()
	}
	s.notifications.append(userID, n)
	s.persist()
	return n
}

// ListNotifications returns the notifications of userID most recent first.
func (s *Store) ListNotifications(userID int64, unreadOnly bool) []model.Notification {
	return s.notifications.list(userID, unreadOnly)
}

func (s *Store) MarkNotificationRead(userID, id int64) bool {
	if !s.notifications.markRead(userID, id) {
		return false
	}
	s.persist()
	return true
}

func (s *Store) DeleteNotification(userID, id int64) bool {
	if !s.notifications.remove(userID, id) {
		return false
	}
	s.persist()
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type persistedState struct {
	Version       int                            `json:"version"`
	Notifications map[int64][]model.Notification `json:"notifications"`
	LastID        int64                          `json:"lastId"`
	SavedAt       int64                          `json:"savedAt"`
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedState
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported state version")
	}

	last := file.LastID
	for _, list := range file.Notifications {
		for _, n := range list {
			last = max(last, n.ID)
		}
	}
	s.notifications.load(file.Notifications)
	s.seq.advance(last)
	return nil
}

func (s *Store) persist() {
	path := s.stateFile
	if path == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.logger.Error("store persistence: mkdir failed", "dir", dir, "error", err)
		return
	}

	file := persistedState{
		Version:       1,
		Notifications: s.notifications.snapshot(),
		LastID:        s.seq.current(),
		SavedAt:       time.Now().UnixMilli(),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		s.logger.Error("store persistence: marshal failed", "error", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		s.logger.Error("store persistence: create temp failed", "error", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		s.logger.Error("store persistence: chmod temp failed", "error", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		s.logger.Error("store persistence: write temp failed", "error", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		s.logger.Error("store persistence: sync temp failed", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Error("store persistence: close temp failed", "error", err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		s.logger.Error("store persistence: rename failed", "error", err)
	}
}
