package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"classquiz-service/internal/domain"
	"classquiz-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// noQuestion marks a room that has not pushed any question yet.
const noQuestion = -1

// Room owns the roster and lifecycle of one live session. Every mutation takes
// mu, so a room has a single writer no matter how many connections feed it.
type Room struct {
	code    string
	quizID  string
	hostKey string
	now     func() time.Time

	mu              sync.Mutex
	status          domain.SessionStatus
	host            *domain.RosterEntry
	roster          map[string]*domain.RosterEntry // identity key -> entry
	identities      map[string]string              // participant ID -> identity key
	answers         map[string]map[string]int      // participant ID -> question ID -> answer
	current         int
	currentID       string
	answeredCurrent map[string]bool
	subscribers     map[chan Event]string
	lastActive      time.Time

	// mirrorMu orders snapshot writes so the last write carries the newest state.
	mirrorMu sync.Mutex
}

// NewRoom creates an empty waiting room.
func NewRoom(code, quizID, hostKey string) *Room {
	return NewRoomWithClock(code, quizID, hostKey, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(code, quizID, hostKey string, now func() time.Time) *Room {
	return &Room{
		code:            code,
		quizID:          quizID,
		hostKey:         hostKey,
		now:             now,
		status:          domain.StatusWaiting,
		roster:          make(map[string]*domain.RosterEntry),
		identities:      make(map[string]string),
		answers:         make(map[string]map[string]int),
		current:         noQuestion,
		answeredCurrent: make(map[string]bool),
		subscribers:     make(map[chan Event]string),
		lastActive:      now(),
	}
}

// restoreRoom rebuilds a room from its recovery snapshot. Restored entries are
// offline until their clients re-join.
func restoreRoom(snap domain.RoomSnapshot, now func() time.Time) *Room {
	r := NewRoomWithClock(snap.RoomCode, snap.QuizID, snap.HostKey, now)
	r.status = snap.Status
	r.current = snap.CurrentQuestion
	r.currentID = snap.CurrentID
	for _, e := range snap.Roster {
		entry := e
		entry.Connected = false
		if entry.Role == domain.RoleTeacher {
			r.host = &entry
			continue
		}
		key := identityKey(entry.Email, entry.Name)
		r.roster[key] = &entry
		r.identities[entry.ID] = key
	}
	for pid, answers := range snap.Answers {
		copied := make(map[string]int, len(answers))
		for q, a := range answers {
			copied[q] = a
		}
		r.answers[pid] = copied
		if _, answered := copied[r.currentID]; answered && r.currentID != "" {
			r.answeredCurrent[pid] = true
		}
	}
	return r
}

func (r *Room) Code() string   { return r.code }
func (r *Room) QuizID() string { return r.quizID }

// Status returns the current lifecycle state.
func (r *Room) Status() domain.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// IsIdle reports whether the room is finished and nobody is listening.
func (r *Room) IsIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == domain.StatusCompleted && len(r.subscribers) == 0
}

// IsStale reports whether nobody is listening and the room has not changed
// since cutoff. Stale rooms can be dropped from memory; their snapshot brings
// them back on the next lookup.
func (r *Room) IsStale(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers) == 0 && r.lastActive.Before(cutoff)
}

// identityKey dedupes joins across reconnects: email when present, else name.
func identityKey(email, name string) string {
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		return "email:" + e
	}
	if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
		return "name:" + n
	}
	return ""
}

type joinOutcome struct {
	entry        domain.RosterEntry
	participants []domain.RosterEntry
	status       domain.SessionStatus
	current      int
	created      bool
}

func (r *Room) join(req JoinRequest) (joinOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == domain.StatusCompleted {
		return joinOutcome{}, domain.ErrSessionCompleted
	}
	key := identityKey(req.Email, req.Name)
	if key == "" {
		return joinOutcome{}, domain.ErrMissingIdentity
	}

	now := r.now()
	if req.Role == domain.RoleTeacher {
		if req.HostKey == "" || req.HostKey != r.hostKey {
			return joinOutcome{}, domain.ErrNotHost
		}
		if r.host == nil {
			r.host = &domain.RosterEntry{ID: uuid.NewString(), Role: domain.RoleTeacher, JoinedAt: now}
		}
		r.host.Name = req.Name
		r.host.Email = req.Email
		r.host.ConnectionID = req.ConnectionID
		r.host.Connected = true
		return r.joinOutcomeLocked(*r.host, false), nil
	}

	entry, ok := r.roster[key]
	created := !ok
	if ok {
		entry.ConnectionID = req.ConnectionID
		entry.Connected = true
		if req.Name != "" {
			entry.Name = req.Name
		}
	} else {
		entry = &domain.RosterEntry{
			ID:           uuid.NewString(),
			ConnectionID: req.ConnectionID,
			Name:         req.Name,
			Email:        req.Email,
			Role:         domain.RoleStudent,
			Connected:    true,
			JoinedAt:     now,
		}
		r.roster[key] = entry
		r.identities[entry.ID] = key
	}
	r.broadcastLocked(Event{Type: EventParticipantJoined, Payload: *entry})
	return r.joinOutcomeLocked(*entry, created), nil
}

func (r *Room) joinOutcomeLocked(entry domain.RosterEntry, created bool) joinOutcome {
	return joinOutcome{
		entry:        entry,
		participants: r.studentsLocked(),
		status:       r.status,
		current:      r.current,
		created:      created,
	}
}

// leave drops a participant after an explicit leave. A host leaving only goes
// offline; the room stays open for the host to come back.
func (r *Room) leave(participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host != nil && r.host.ID == participantID {
		r.host.Connected = false
		return true
	}
	if !r.deleteLocked(participantID) {
		return false
	}
	r.broadcastLocked(Event{Type: EventParticipantLeft, Payload: ParticipantRef{ID: participantID}})
	return true
}

// disconnect marks the entry bound to connectionID offline. A newer
// connection for the same identity is left untouched. Peers get the updated
// room state when a student goes offline.
func (r *Room) disconnect(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host != nil && r.host.ConnectionID == connectionID {
		r.host.Connected = false
		return true
	}
	for _, entry := range r.roster {
		if entry.ConnectionID == connectionID && entry.Connected {
			entry.Connected = false
			r.broadcastLocked(Event{Type: EventRoomState, Payload: r.snapshotLocked()})
			return true
		}
	}
	return false
}

func (r *Room) remove(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.deleteLocked(participantID) {
		return domain.ErrParticipantNotFound
	}
	r.broadcastLocked(Event{Type: EventParticipantRemoved, Payload: ParticipantRef{ID: participantID}})
	return nil
}

func (r *Room) deleteLocked(participantID string) bool {
	key, ok := r.identities[participantID]
	if !ok {
		return false
	}
	delete(r.identities, participantID)
	delete(r.roster, key)
	delete(r.answeredCurrent, participantID)
	return true
}

func (r *Room) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roster = make(map[string]*domain.RosterEntry)
	r.identities = make(map[string]string)
	r.answers = make(map[string]map[string]int)
	r.answeredCurrent = make(map[string]bool)
	r.broadcastLocked(Event{Type: EventRoomReset, Payload: RoomRef{RoomCode: r.code}})
}

// apply runs a lifecycle action and broadcasts ev only when the state changed.
func (r *Room) apply(action lifecycleAction, ev Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, changed, err := transition(r.status, action)
	if err != nil || !changed {
		return false, err
	}
	r.status = next
	r.broadcastLocked(ev)
	return true, nil
}

func (r *Room) pushQuestion(index int, q domain.Question, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case domain.StatusWaiting:
		return domain.ErrSessionNotStarted
	case domain.StatusCompleted:
		return domain.ErrSessionCompleted
	}
	r.current = index
	r.currentID = q.ID
	r.answeredCurrent = make(map[string]bool)
	r.broadcastLocked(Event{Type: EventQuestionStarted, Payload: QuestionStartedPayload{
		Index:          index,
		TotalQuestions: total,
		Question:       q.Public(),
	}})
	return nil
}

// submit records an answer for the active question and returns the
// participant's running score.
func (r *Room) submit(participantID string, q domain.Question, answer int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case domain.StatusWaiting:
		return 0, domain.ErrSessionNotStarted
	case domain.StatusCompleted:
		return 0, domain.ErrSessionCompleted
	}
	key, ok := r.identities[participantID]
	if !ok {
		return 0, domain.ErrParticipantNotFound
	}
	if r.currentID == "" || q.ID != r.currentID {
		return 0, domain.ErrQuestionNotActive
	}
	if r.answeredCurrent[participantID] {
		return 0, domain.ErrAlreadyAnswered
	}

	r.answeredCurrent[participantID] = true
	if r.answers[participantID] == nil {
		r.answers[participantID] = make(map[string]int)
	}
	r.answers[participantID][q.ID] = answer

	entry := r.roster[key]
	if answer == q.CorrectAnswer {
		entry.Score++
	}
	return entry.Score, nil
}

// results converts the roster into participant records for storage.
func (r *Room) results() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Map(r.studentsLocked(), func(e domain.RosterEntry, _ int) domain.Participant {
		answers := make(map[string]int, len(r.answers[e.ID]))
		for q, a := range r.answers[e.ID] {
			answers[q] = a
		}
		return domain.Participant{
			ID:        e.ID,
			QuizID:    r.quizID,
			Name:      e.Name,
			Email:     e.Email,
			Score:     e.Score,
			Answers:   answers,
			CreatedAt: e.JoinedAt,
		}
	})
}

// Snapshot returns the recovery copy of the room.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	roster := r.studentsLocked()
	if r.host != nil {
		roster = append([]domain.RosterEntry{*r.host}, roster...)
	}
	answers := make(map[string]map[string]int, len(r.answers))
	for pid, byQuestion := range r.answers {
		copied := make(map[string]int, len(byQuestion))
		for q, a := range byQuestion {
			copied[q] = a
		}
		answers[pid] = copied
	}
	return domain.RoomSnapshot{
		RoomCode:        r.code,
		QuizID:          r.quizID,
		HostKey:         r.hostKey,
		Status:          r.status,
		CurrentQuestion: r.current,
		CurrentID:       r.currentID,
		Roster:          roster,
		Answers:         answers,
		UpdatedAt:       r.now(),
	}
}

// mirror writes the current state to the recovery store.
func (r *Room) mirror(ctx context.Context, store SnapshotStore) error {
	r.mirrorMu.Lock()
	defer r.mirrorMu.Unlock()

	r.mu.Lock()
	snap := r.snapshotLocked()
	r.lastActive = snap.UpdatedAt
	r.mu.Unlock()
	return store.Save(ctx, snap)
}

// studentsLocked lists visible students ordered by join time, then name.
func (r *Room) studentsLocked() []domain.RosterEntry {
	entries := lo.MapToSlice(r.roster, func(_ string, e *domain.RosterEntry) domain.RosterEntry {
		return *e
	})
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].JoinedAt.Before(entries[j].JoinedAt)
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func (r *Room) subscribe(connectionID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	r.mu.Lock()
	r.subscribers[ch] = connectionID
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) broadcastLocked(ev Event) {
	metrics.RoomEvents.WithLabelValues(string(ev.Type)).Inc()
	for ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop its oldest event rather than block the room.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
