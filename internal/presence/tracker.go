// Package presence считает живые соединения пользователя и сообщает
// только о переходах offline -> online и online -> offline.
package presence

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shardCount = 32

// persistTimeout ограничивает запись isOnline/lastSeen, которая идёт под локом шарда
const persistTimeout = 5 * time.Second

// Store куда пишется isOnline/lastSeen
type Store interface {
	SetPresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error
}

// Status событие смены статуса, уходит всем клиентам
type Status struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type Notifier func(Status)

type shard struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}
}

type Tracker struct {
	shards [shardCount]shard
	store  Store
	notify Notifier
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewTracker(store Store, notify Notifier, log *zap.SugaredLogger) *Tracker {
	t := &Tracker{
		store:  store,
		notify: notify,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for i := range t.shards {
		t.shards[i].conns = make(map[string]map[string]struct{})
	}
	return t
}

func (t *Tracker) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &t.shards[h.Sum32()%shardCount]
}

// OnConnect добавляет соединение. true — пользователь только что стал online.
func (t *Tracker) OnConnect(userID, connID string) bool {
	s := t.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		s.conns[userID] = set
	}
	if _, dup := set[connID]; dup {
		return false
	}
	set[connID] = struct{}{}
	if len(set) > 1 {
		return false
	}

	t.edge(userID, true)
	return true
}

// OnDisconnect убирает соединение. true — закрылось последнее соединение.
func (t *Tracker) OnDisconnect(userID, connID string) bool {
	s := t.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[userID]
	if !ok {
		return false
	}
	if _, known := set[connID]; !known {
		return false
	}
	delete(set, connID)
	if len(set) > 0 {
		return false
	}
	delete(s.conns, userID)

	t.edge(userID, false)
	return true
}

// edge вызывается под локом шарда, поэтому переходы одного пользователя не переупорядочиваются
func (t *Tracker) edge(userID string, online bool) {
	status := Status{UserID: userID, IsOnline: online, LastSeen: t.now()}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := t.store.SetPresence(ctx, userID, online, status.LastSeen); err != nil {
		t.log.Warnw("persist presence", "user_id", userID, "online", online, "error", err)
	}

	if t.notify != nil {
		t.notify(status)
	}
}

func (t *Tracker) IsOnline(userID string) bool {
	s := t.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID]) > 0
}

// Connections число живых соединений пользователя
func (t *Tracker) Connections(userID string) int {
	s := t.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID])
}

func (t *Tracker) OnlineCount() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.conns)
		s.mu.Unlock()
	}
	return n
}
