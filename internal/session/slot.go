package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Slot is a single save position: one JSON snapshot under one key.
//
// A Slot never hands back a half-read save. Anything that fails to decode
// or validate is logged, deleted, and reported as missing. In preview mode
// the slot neither reads nor writes.
type Slot[T any] struct {
	Store   Store[[]byte]
	Key     string
	Preview bool
	// Validate rejects decoded values that are structurally unusable.
	Validate func(*T) error
	Logger   *zap.Logger
}

// NewSlot returns a slot bound to key.
func NewSlot[T any](store Store[[]byte], key string, preview bool, validate func(*T) error, logger *zap.Logger) *Slot[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slot[T]{Store: store, Key: key, Preview: preview, Validate: validate, Logger: logger.Named("SaveSlot")}
}

// Save writes a full snapshot of v.
func (s *Slot[T]) Save(ctx context.Context, v T) error {
	if s.Preview {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode save %s: %w", s.Key, err)
	}
	if err := s.Store.Put(ctx, s.Key, b); err != nil {
		return fmt.Errorf("write save %s: %w", s.Key, err)
	}
	return nil
}

// Load reads the snapshot. The bool is false when there is no usable save.
func (s *Slot[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	if s.Preview {
		return zero, false, nil
	}
	b, ok, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return zero, false, fmt.Errorf("read save %s: %w", s.Key, err)
	}
	if !ok {
		return zero, false, nil
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		s.discard(ctx, err)
		return zero, false, nil
	}
	if s.Validate != nil {
		if err := s.Validate(&v); err != nil {
			s.discard(ctx, err)
			return zero, false, nil
		}
	}
	return v, true, nil
}

// Exists reports whether a save is present, without decoding it.
func (s *Slot[T]) Exists(ctx context.Context) bool {
	if s.Preview {
		return false
	}
	_, ok, err := s.Store.Get(ctx, s.Key)
	return err == nil && ok
}

// Clear removes the save.
func (s *Slot[T]) Clear(ctx context.Context) error {
	if s.Preview {
		return nil
	}
	if err := s.Store.Delete(ctx, s.Key); err != nil {
		return fmt.Errorf("clear save %s: %w", s.Key, err)
	}
	return nil
}

func (s *Slot[T]) discard(ctx context.Context, cause error) {
	s.Logger.Warn("Discarding corrupt save", zap.String("key", s.Key), zap.Error(cause))
	if err := s.Store.Delete(ctx, s.Key); err != nil {
		s.Logger.Error("Failed to clear corrupt save", zap.String("key", s.Key), zap.Error(err))
	}
}
