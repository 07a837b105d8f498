package catalog

import (
	"sync"

	"go.uber.org/zap"
)

// Store holds the current catalog snapshot. Reads are lock-cheap; Replace is
// the only mutation path and may race harmlessly with in-flight evaluations,
// which keep the snapshot pointer they started with.
type Store struct {
	mu        sync.RWMutex
	snapshot  *Snapshot
	logger    *zap.Logger
	listeners []func(*Snapshot)
}

// NewStore creates a store seeded with an initial snapshot
func NewStore(initial *Snapshot, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		snapshot: initial,
		logger:   logger,
	}
}

// Snapshot returns the current catalog snapshot
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Version returns the current snapshot version
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return ""
	}
	return s.snapshot.Version
}

// Replace installs a new snapshot and notifies listeners
func (s *Store) Replace(snap *Snapshot) {
	s.mu.Lock()
	old := s.snapshot
	s.snapshot = snap
	listeners := s.listeners
	s.mu.Unlock()

	oldVersion := ""
	if old != nil {
		oldVersion = old.Version
	}
	s.logger.Info("Catalog snapshot replaced",
		zap.String("old_version", oldVersion),
		zap.String("new_version", snap.Version),
		zap.Int("roles", len(snap.Roles)),
		zap.Int("resources", len(snap.Resources)),
	)

	for _, fn := range listeners {
		fn(snap)
	}
}

// OnReplace registers a callback invoked after each snapshot replacement.
// Registration is expected during wiring, before concurrent use.
func (s *Store) OnReplace(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
