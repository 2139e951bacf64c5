package memory

import (
	"context"
	"sync"

	"classquiz-service/internal/domain"
)

// SnapshotStore keeps room recovery snapshots in process memory.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.RoomSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.RoomSnapshot)}
}

func (s *SnapshotStore) Save(_ context.Context, snap domain.RoomSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.RoomCode] = snap
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, code string) (domain.RoomSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[code]
	return snap, ok, nil
}

func (s *SnapshotStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, code)
	return nil
}
