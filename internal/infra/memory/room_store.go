package memory

import (
	"context"
	"sync"
	"time"

	"classquiz-service/internal/app"
)

// RoomStore is an in-memory implementation of app.RoomRepository.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) Add(room *app.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code()]; ok {
		return false
	}
	s.rooms[room.Code()] = room
	return true
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Touch is a no-op: the room tracks its own activity.
func (s *RoomStore) Touch(context.Context, *app.Room) {}

func (s *RoomStore) DeleteIfIdle(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return
	}
	if room.IsIdle() {
		delete(s.rooms, code)
	}
}

func (s *RoomStore) EvictStale(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []string
	for code, room := range s.rooms {
		if room.IsStale(cutoff) {
			delete(s.rooms, code)
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
