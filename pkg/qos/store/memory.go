package store

import (
	"context"
	"fmt"
	"sync"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/volume"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	limits map[string]volume.Limits
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{limits: make(map[string]volume.Limits)}
}

func (s *MemoryStore) Get(ctx context.Context, name string) (volume.Limits, error) {
	if err := ctx.Err(); err != nil {
		return volume.Limits{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.limits[name]
	if !ok {
		return volume.Limits{}, fmt.Errorf("volume %q: %w", name, qoserrors.ErrNotFound)
	}
	return l, nil
}

func (s *MemoryStore) Set(ctx context.Context, name string, limits volume.Limits) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[name] = limits
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limits, name)
	return nil
}

// Len returns the number of stored volumes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limits)
}

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates a MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, name string) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[name] {
		return nil, fmt.Errorf("volume %q: %w", name, qoserrors.ErrLocked)
	}
	l.held[name] = true
	return &memoryLock{locker: l, name: name}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	name   string
	once   sync.Once
}

func (m *memoryLock) Close() error {
	m.once.Do(func() {
		m.locker.mu.Lock()
		delete(m.locker.held, m.name)
		m.locker.mu.Unlock()
	})
	return nil
}
