package store

import (
	"maps"
	"sync"

	"garage-client/internal/model"
)

// notificationLog keeps each user's notifications in insertion order.
type notificationLog struct {
	mu   sync.RWMutex
	data map[int64][]model.Notification
}

func newNotificationLog() *notificationLog {
	return &notificationLog{data: make(map[int64][]model.Notification)}
}

func (l *notificationLog) append(userID int64, n model.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.data[userID] = append(l.data[userID], n)
}

func (l *notificationLog) list(userID int64, unreadOnly bool) []model.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	items := l.data[userID]
	result := make([]model.Notification, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if unreadOnly && items[i].Read {
			continue
		}
		result = append(result, items[i])
	}
	return result
}

func (l *notificationLog) markRead(userID, id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := l.data[userID]
	for i := range items {
		if items[i].ID == id {
			items[i].Read = true
			return true
		}
	}
	return false
}

func (l *notificationLog) remove(userID, id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := l.data[userID]
	for i := range items {
		if items[i].ID == id {
			l.data[userID] = append(items[:i:i], items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *notificationLog) snapshot() map[int64][]model.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[int64][]model.Notification, len(l.data))
	for userID, items := range l.data {
		out[userID] = append([]model.Notification(nil), items...)
	}
	return out
}

func (l *notificationLog) load(data map[int64][]model.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	maps.Copy(l.data, data)
}
