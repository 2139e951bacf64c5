package redis

import (
	"context"
	"sync"
	"time"

	"classquiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms themselves live in a local map so broadcasts stay in-process.
//   - room:{code}:live marks rooms this process holds for operators; every
//     persisted change refreshes its TTL and eviction deletes it.
//   - Roster recovery goes through SnapshotStore, not this marker.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Add(room *app.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code()]; ok {
		return false
	}
	s.rooms[room.Code()] = room
	s.mark(context.Background(), room)
	return true
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Touch refreshes the liveness marker of a room this process still holds.
func (s *RoomStore) Touch(ctx context.Context, room *app.Room) {
	s.mu.RLock()
	held := s.rooms[room.Code()] == room
	s.mu.RUnlock()
	if held {
		s.mark(ctx, room)
	}
}

func (s *RoomStore) DeleteIfIdle(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return
	}
	if room.IsIdle() {
		delete(s.rooms, code)
		s.unmark(code)
	}
}

func (s *RoomStore) EvictStale(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []string
	for code, room := range s.rooms {
		if room.IsStale(cutoff) {
			delete(s.rooms, code)
			s.unmark(code)
			evicted = append(evicted, code)
		}
	}
	return evicted
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// best-effort: a missing marker never blocks the room itself
func (s *RoomStore) mark(ctx context.Context, room *app.Room) {
	_ = s.client.Set(ctx, s.key(room.Code()), room.QuizID(), s.ttl).Err()
}

func (s *RoomStore) unmark(code string) {
	_ = s.client.Del(context.Background(), s.key(code)).Err()
}

func (s *RoomStore) key(code string) string {
	return "room:" + code + ":live"
}
