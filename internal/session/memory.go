package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps values in process. With a TTL it doubles as the web
// host's table of live players: entries idle for longer than TTL are
// evicted on access or by Sweep.
type MemoryStore[T any] struct {
	// TTL evicts entries not read or written for that long; zero keeps
	// them forever.
	TTL time.Duration
	// OnEvict is called, outside the lock, for every expired entry.
	OnEvict func(id string, v T)

	now func() time.Time

	mu sync.Mutex
	m  map[string]memoryEntry[T]
}

type memoryEntry[T any] struct {
	v       T
	touched time.Time
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{m: map[string]memoryEntry[T]{}, now: time.Now}
}

func (s *MemoryStore[T]) expired(e memoryEntry[T], now time.Time) bool {
	return s.TTL > 0 && now.Sub(e.touched) > s.TTL
}

func (s *MemoryStore[T]) Get(_ context.Context, id string) (T, bool, error) {
	var zero T
	s.mu.Lock()
	e, ok := s.m[id]
	if !ok {
		s.mu.Unlock()
		return zero, false, nil
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.m, id)
		s.mu.Unlock()
		s.evicted(id, e.v)
		return zero, false, nil
	}
	e.touched = now
	s.m[id] = e
	s.mu.Unlock()
	return e.v, true, nil
}

func (s *MemoryStore[T]) Put(_ context.Context, id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = memoryEntry[T]{v: v, touched: s.now()}
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

func (s *MemoryStore[T]) NewID() string {
	return newID()
}

// Len returns the number of entries, expired or not.
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep evicts every expired entry and returns how many went.
func (s *MemoryStore[T]) Sweep() int {
	if s.TTL <= 0 {
		return 0
	}
	now := s.now()
	type gone struct {
		id string
		v  T
	}
	var out []gone

	s.mu.Lock()
	for id, e := range s.m {
		if s.expired(e, now) {
			delete(s.m, id)
			out = append(out, gone{id, e.v})
		}
	}
	s.mu.Unlock()

	for _, g := range out {
		s.evicted(g.id, g.v)
	}
	return len(out)
}

// SweepEvery runs Sweep on a ticker until ctx is done.
func (s *MemoryStore[T]) SweepEvery(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore[T]) evicted(id string, v T) {
	if s.OnEvict != nil {
		s.OnEvict(id, v)
	}
}
