package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SnapshotStore keeps room recovery snapshots as JSON under
// room:{code}:snapshot. Every save refreshes the TTL, so abandoned rooms age
// out on their own.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, snap domain.RoomSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key(snap.RoomCode), raw, s.ttl).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, code string) (domain.RoomSnapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RoomSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RoomSnapshot{}, false, err
	}
	var snap domain.RoomSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.RoomSnapshot{}, false, fmt.Errorf("decode snapshot %s: %w", code, err)
	}
	return snap, true, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, code string) error {
	return s.client.Del(ctx, s.key(code)).Err()
}

func (s *SnapshotStore) key(code string) string {
	return "room:" + code + ":snapshot"
}
