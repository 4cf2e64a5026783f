// Package notification reconciles persisted notification records with
// events pushed over the realtime channel.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"garage-client/internal/apierr"
	"garage-client/internal/hub"
	"garage-client/internal/model"
	"garage-client/internal/realtime"
)

// Event is the push event carrying a new notification.
const Event = "notification"

type Backend interface {
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	GetAllNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	DeleteNotification(ctx context.Context, id int64) error
}

type Subscriber interface {
	On(event string, handler realtime.Handler)
	Off(event string)
}

type Toaster interface {
	Show(message string, severity model.Severity) model.Toast
}

type Snapshot struct {
	Unread      []model.Notification
	All         []model.Notification
	UnreadCount int
}

// entry tags a record with its insertion sequence. Only pushed entries are
// retained across a wholesale refetch.
type entry struct {
	rec    model.Notification
	seq    uint64
	pushed bool
}

type Center struct {
	backend Backend
	channel Subscriber
	toasts  Toaster
	logger  *slog.Logger

	mu          sync.Mutex
	seq         uint64
	epoch       uint64 // bumped by Reset; fetches started before it are dropped
	unread      []entry
	all         []entry
	unreadCount int

	changes *hub.Hub[Snapshot]
}

func NewCenter(backend Backend, channel Subscriber, toasts Toaster, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		backend: backend,
		channel: channel,
		toasts:  toasts,
		logger:  logger,
		changes: hub.New[Snapshot](),
	}
}

// Classify maps a backend type tag to a toast severity.
func Classify(typeTag string) model.Severity {
	tag := strings.ToUpper(typeTag)
	switch {
	case strings.Contains(tag, "ERROR") || strings.Contains(tag, "FAIL"):
		return model.SeverityError
	case strings.Contains(tag, "SUCCESS") || strings.Contains(tag, "COMPLETED"):
		return model.SeveritySuccess
	case strings.Contains(tag, "WARNING") || strings.Contains(tag, "LOW"):
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// Initialize loads the unread set and subscribes to pushed notifications.
// The handler is installed even when the fetch fails so live delivery keeps
// working; pushes that race the fetch survive it.
func (c *Center) Initialize(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	c.channel.On(Event, c.HandlePush)
	return c.fetchUnread(ctx, epoch)
}

func (c *Center) HandlePush(payload json.RawMessage) {
	var n model.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		c.logger.Warn("notification push: invalid payload", "error", err)
		return
	}
	c.Receive(n)
}

// Receive applies a live notification: toast, prepend to both views, count it.
func (c *Center) Receive(n model.Notification) {
	c.toasts.Show(n.Message, Classify(n.Type))

	c.mu.Lock()
	c.seq++
	e := entry{rec: n, seq: c.seq, pushed: true}
	c.unread = append([]entry{e}, c.unread...)
	c.all = append([]entry{e}, c.all...)
	c.unreadCount++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("notification received", "id", n.ID, "type", n.Type)
	c.changes.Broadcast(snap)
}

// FetchUnread replaces the unread view. A response that arrives after Reset
// belongs to the ended session and is dropped.
func (c *Center) FetchUnread(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	return c.fetchUnread(ctx, epoch)
}

func (c *Center) fetchUnread(ctx context.Context, epoch uint64) error {
	c.mu.Lock()
	start := c.seq
	c.mu.Unlock()

	list, err := c.backend.GetUnreadNotifications(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("dropping unread fetch from a reset session")
		return nil
	}
	c.unread = c.replaceLocked(c.unread, list, start)
	c.unreadCount = len(c.unread)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Broadcast(snap)
	return nil
}

func (c *Center) FetchAll(ctx context.Context) error {
	c.mu.Lock()
	start, epoch := c.seq, c.epoch
	c.mu.Unlock()

	list, err := c.backend.GetAllNotifications(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("dropping feed fetch from a reset session")
		return nil
	}
	c.all = c.replaceLocked(c.all, list, start)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Broadcast(snap)
	return nil
}

// MarkRead acknowledges id on the backend and updates both views. An id the
// backend no longer knows is still cleared locally. The unread count drops
// only when id was in the unread view, so a repeated call leaves it equal to
// the length of that view instead of decrementing again.
func (c *Center) MarkRead(ctx context.Context, id int64) error {
	if err := c.backend.MarkNotificationRead(ctx, id); err != nil && !apierr.IsKind(err, apierr.KindNotFound) {
		return err
	}

	c.mu.Lock()
	var removed bool
	c.unread, removed = without(c.unread, id)
	for i := range c.all {
		if c.all[i].rec.ID == id {
			c.all[i].rec.Read = true
		}
	}
	if removed {
		c.unreadCount = max(0, c.unreadCount-1)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Broadcast(snap)
	return nil
}

func (c *Center) DeleteNotification(ctx context.Context, id int64) error {
	if err := c.backend.DeleteNotification(ctx, id); err != nil && !apierr.IsKind(err, apierr.KindNotFound) {
		return err
	}

	c.mu.Lock()
	c.unread, _ = without(c.unread, id)
	c.all, _ = without(c.all, id)
	c.unreadCount = len(c.unread)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Broadcast(snap)
	return nil
}

// Reset drops every record and unsubscribes from pushes, as on logout.
func (c *Center) Reset() {
	c.channel.Off(Event)

	c.mu.Lock()
	c.epoch++
	c.unread = nil
	c.all = nil
	c.unreadCount = 0
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changes.Broadcast(snap)
}

func (c *Center) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unreadCount
}

func (c *Center) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return c.changes.Register(fn)
}

// replaceLocked swaps current for fetched, keeping pushed entries that
// arrived after the fetch started and that the fetch does not already carry.
func (c *Center) replaceLocked(current []entry, fetched []model.Notification, start uint64) []entry {
	ids := make(map[int64]struct{}, len(fetched))
	for _, n := range fetched {
		if n.ID != 0 {
			ids[n.ID] = struct{}{}
		}
	}

	out := make([]entry, 0, len(fetched)+len(current))
	for _, e := range current {
		if !e.pushed || e.seq <= start {
			continue
		}
		if _, dup := ids[e.rec.ID]; dup && e.rec.ID != 0 {
			continue
		}
		out = append(out, e)
	}
	if kept := len(out); kept > 0 {
		c.logger.Debug("refetch kept newer pushed notifications", "count", kept)
	}
	for _, n := range fetched {
		c.seq++
		out = append(out, entry{rec: n, seq: c.seq})
	}
	return out
}

func (c *Center) snapshotLocked() Snapshot {
	return Snapshot{
		Unread:      records(c.unread),
		All:         records(c.all),
		UnreadCount: c.unreadCount,
	}
}

func records(entries []entry) []model.Notification {
	out := make([]model.Notification, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

func without(entries []entry, id int64) ([]entry, bool) {
	out := entries[:0:0]
	removed := false
	for _, e := range entries {
		if e.rec.ID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}
