package toast

import (
	"testing"
	"time"

	"garage-client/internal/logging"
	"garage-client/internal/model"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(clock clockwork.Clock) *Scheduler {
	return NewScheduler(Options{Clock: clock, Logger: logging.Discard()})
}

func TestShow_IDsStrictlyIncrease(t *testing.T) {
	s := newTestScheduler(clockwork.NewFakeClock())
	defer s.Close()

	var last int64
	for i := 0; i < 20; i++ {
		tt := s.Show("hola", model.SeverityInfo)
		require.Greater(t, tt.ID, last)
		last = tt.ID
	}
}

func TestShow_IDsNotReusedAfterRemoval(t *testing.T) {
	s := newTestScheduler(clockwork.NewFakeClock())
	defer s.Close()

	a := s.Show("a", model.SeverityInfo)
	s.Remove(a.ID)
	b := s.Show("b", model.SeverityInfo)
	assert.Greater(t, b.ID, a.ID)
}

func TestShow_DefaultsToInfo(t *testing.T) {
	s := newTestScheduler(clockwork.NewFakeClock())
	defer s.Close()

	tt := s.Show("x", "")
	assert.Equal(t, model.SeverityInfo, tt.Severity)
}

func TestShow_AppendsInOrderWithDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestScheduler(clock)
	defer s.Close()

	first := s.Show("first", model.SeverityWarning)
	s.Show("second", model.SeverityError)

	active := s.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].Message)
	assert.Equal(t, "second", active[1].Message)
	assert.Equal(t, clock.Now().Add(DefaultDuration), first.ExpiresAt)
}

func TestShow_ExpiresAfterDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestScheduler(clock)
	defer s.Close()

	s.Show("bye", model.SeverityInfo)
	clock.Advance(DefaultDuration - time.Millisecond)
	require.Len(t, s.Active(), 1)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return len(s.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestRemove_Idempotent(t *testing.T) {
	s := newTestScheduler(clockwork.NewFakeClock())
	defer s.Close()

	a := s.Show("a", model.SeverityInfo)
	b := s.Show("b", model.SeverityInfo)

	changes := 0
	s.Subscribe(func([]model.Toast) { changes++ })

	s.Remove(a.ID)
	s.Remove(a.ID)
	s.Remove(999)

	assert.Equal(t, 1, changes)
	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
}

func TestExpiryAfterManualRemovalIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestScheduler(clock)
	defer s.Close()

	a := s.Show("a", model.SeverityInfo)
	s.Remove(a.ID)
	s.Show("b", model.SeverityInfo)

	clock.Advance(DefaultDuration / 2)
	require.Len(t, s.Active(), 1)
}

func TestSubscribeShown(t *testing.T) {
	s := newTestScheduler(clockwork.NewFakeClock())
	defer s.Close()

	var got []model.Toast
	unsubscribe := s.SubscribeShown(func(tt model.Toast) { got = append(got, tt) })
	s.Show("one", model.SeveritySuccess)
	unsubscribe()
	s.Show("two", model.SeveritySuccess)

	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Message)
}
