package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type write struct {
	userID string
	online bool
}

type fakeStore struct {
	mu     sync.Mutex
	writes []write
	err    error
}

func (f *fakeStore) SetPresence(_ context.Context, userID string, online bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{userID, online})
	return f.err
}

func (f *fakeStore) all() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) notify(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func newTestTracker() (*Tracker, *fakeStore, *recorder) {
	store := &fakeStore{}
	rec := &recorder{}
	return NewTracker(store, rec.notify, zap.NewNop().Sugar()), store, rec
}

func TestTwoTabs(t *testing.T) {
	tr, store, rec := newTestTracker()

	assert.True(t, tr.OnConnect("10000001", "tab-1"))
	assert.False(t, tr.OnConnect("10000001", "tab-2"))
	assert.True(t, tr.IsOnline("10000001"))
	assert.Equal(t, 2, tr.Connections("10000001"))

	assert.False(t, tr.OnDisconnect("10000001", "tab-1"))
	assert.True(t, tr.IsOnline("10000001"))
	require.Len(t, rec.all(), 1)

	assert.True(t, tr.OnDisconnect("10000001", "tab-2"))
	assert.False(t, tr.IsOnline("10000001"))

	statuses := rec.all()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].IsOnline)
	assert.False(t, statuses[1].IsOnline)
	assert.Equal(t, "10000001", statuses[1].UserID)
	assert.False(t, statuses[1].LastSeen.IsZero())

	assert.Equal(t, []write{{"10000001", true}, {"10000001", false}}, store.all())
}

func TestDuplicateAndUnknownConnections(t *testing.T) {
	tr, store, rec := newTestTracker()

	assert.False(t, tr.OnDisconnect("10000001", "ghost"))

	tr.OnConnect("10000001", "tab-1")
	assert.False(t, tr.OnConnect("10000001", "tab-1"))
	assert.False(t, tr.OnDisconnect("10000001", "ghost"))
	assert.Equal(t, 1, tr.Connections("10000001"))

	assert.True(t, tr.OnDisconnect("10000001", "tab-1"))
	assert.False(t, tr.OnDisconnect("10000001", "tab-1"))

	assert.Len(t, store.all(), 2)
	assert.Len(t, rec.all(), 2)
}

func TestPersistFailureStillBroadcasts(t *testing.T) {
	tr, store, rec := newTestTracker()
	store.err = errors.New("connection refused")

	assert.True(t, tr.OnConnect("10000001", "tab-1"))
	assert.True(t, tr.IsOnline("10000001"))
	assert.Len(t, rec.all(), 1)
}

func TestConcurrentConnections(t *testing.T) {
	tr, _, rec := newTestTracker()

	const users, tabs = 50, 8
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for c := 0; c < tabs; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				user := fmt.Sprintf("1%07d", u)
				conn := fmt.Sprintf("conn-%d", c)
				tr.OnConnect(user, conn)
				tr.OnDisconnect(user, conn)
				tr.OnConnect(user, conn)
			}(u, c)
		}
	}
	wg.Wait()

	assert.Equal(t, users, tr.OnlineCount())

	// по каждому пользователю переходы строго чередуются и заканчиваются online
	last := map[string]bool{}
	for _, s := range rec.all() {
		prev, seen := last[s.UserID]
		if seen {
			assert.NotEqual(t, prev, s.IsOnline, s.UserID)
		} else {
			assert.True(t, s.IsOnline, s.UserID)
		}
		last[s.UserID] = s.IsOnline
	}
	assert.Len(t, last, users)
	for user, online := range last {
		assert.True(t, online, user)
	}
}
