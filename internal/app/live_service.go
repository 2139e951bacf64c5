package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"classquiz-service/internal/domain"
	"classquiz-service/internal/metrics"
	"github.com/google/uuid"
)

// RoomRepository holds the live rooms of this process (in-memory, Redis-marked, etc).
type RoomRepository interface {
	// Add registers a room; false when the code is already taken.
	Add(room *Room) bool
	Get(code string) (*Room, bool)
	// Touch records activity after a persisted mutation.
	Touch(ctx context.Context, room *Room)
	DeleteIfIdle(code string)
	// EvictStale drops rooms that are stale at cutoff and returns their codes.
	EvictStale(cutoff time.Time) []string
	Len() int
}

// SnapshotStore is the recovery store for live rooms. It lags the in-memory
// rooms and is overwritten by them on conflict.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.RoomSnapshot) error
	Load(ctx context.Context, code string) (domain.RoomSnapshot, bool, error)
	Delete(ctx context.Context, code string) error
}

// ParticipantWriter persists participant records once a live quiz stops.
type ParticipantWriter interface {
	SaveParticipants(ctx context.Context, quizID string, participants []domain.Participant) error
}

// RoomTicket is handed to the teacher who opens a live room.
type RoomTicket struct {
	RoomCode string `json:"roomCode"`
	HostKey  string `json:"hostKey"`
	QuizID   string `json:"quizId"`
}

// JoinRequest describes a client joining a room.
type JoinRequest struct {
	Name         string
	Email        string
	Role         domain.Role
	HostKey      string
	ConnectionID string
}

// JoinResult is what a joining client needs to render the room.
type JoinResult struct {
	RoomCode        string                  `json:"roomCode"`
	Participant     domain.RosterEntry      `json:"participant"`
	Participants    []domain.RosterEntry    `json:"participants"`
	Status          domain.SessionStatus    `json:"status"`
	CurrentQuestion *QuestionStartedPayload `json:"currentQuestion,omitempty"`
}

// AnswerResult acknowledges a live answer to its submitter.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	TotalScore int    `json:"totalScore"`
}

// LiveService coordinates live rooms: roster changes, lifecycle and recovery.
type LiveService struct {
	rooms     RoomRepository
	snapshots SnapshotStore
	quizzes   QuizRepository
	writer    ParticipantWriter
	codes     *CodeGenerator
	now       func() time.Time
	logger    *slog.Logger
}

// LiveOption customizes a LiveService.
type LiveOption func(*LiveService)

// WithParticipantWriter flushes results to w when a quiz stops.
func WithParticipantWriter(w ParticipantWriter) LiveOption {
	return func(s *LiveService) { s.writer = w }
}

// WithCodeGenerator overrides room code generation.
func WithCodeGenerator(g *CodeGenerator) LiveOption {
	return func(s *LiveService) { s.codes = g }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) LiveOption {
	return func(s *LiveService) { s.now = now }
}

func NewLiveService(rooms RoomRepository, snapshots SnapshotStore, quizzes QuizRepository, opts ...LiveOption) *LiveService {
	s := &LiveService{
		rooms:     rooms,
		snapshots: snapshots,
		quizzes:   quizzes,
		codes:     NewCodeGenerator(DefaultCodeLength),
		now:       time.Now,
		logger:    slog.Default().With("component", "live"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const maxCodeAttempts = 16

// CreateRoom opens a waiting room for a quiz.
func (s *LiveService) CreateRoom(ctx context.Context, quizID string) (RoomTicket, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return RoomTicket{}, err
	}

	hostKey := uuid.NewString()
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.codes.Next()
		if _, found, err := s.snapshots.Load(ctx, code); err != nil {
			return RoomTicket{}, fmt.Errorf("check room code: %w", err)
		} else if found {
			continue
		}
		room := NewRoomWithClock(code, quizID, hostKey, s.now)
		if !s.rooms.Add(room) {
			continue
		}
		metrics.ActiveRooms.Set(float64(s.rooms.Len()))
		s.persist(ctx, room)
		s.logger.Info("room created", "room", code, "quiz", quizID)
		return RoomTicket{RoomCode: code, HostKey: hostKey, QuizID: quizID}, nil
	}
	return RoomTicket{}, errors.New("could not allocate a free room code")
}

// lookup finds a live room, restoring it from the recovery store when this
// process does not hold it.
func (s *LiveService) lookup(ctx context.Context, code string) (*Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidRoomCode
	}
	if room, ok := s.rooms.Get(code); ok {
		return room, nil
	}

	snap, found, err := s.snapshots.Load(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load room snapshot: %w", err)
	}
	if !found {
		return nil, domain.ErrInvalidRoomCode
	}
	restored := restoreRoom(snap, s.now)
	if !s.rooms.Add(restored) {
		// Another request restored it first.
		if room, ok := s.rooms.Get(code); ok {
			return room, nil
		}
	}
	metrics.ActiveRooms.Set(float64(s.rooms.Len()))
	s.logger.Info("room restored from snapshot", "room", code, "entries", len(snap.Roster))
	return restored, nil
}

func (s *LiveService) persist(ctx context.Context, room *Room) {
	if err := room.mirror(ctx, s.snapshots); err != nil {
		s.logger.Warn("snapshot write failed", "room", room.Code(), "error", err)
	}
	s.rooms.Touch(ctx, room)
}

// EvictStale drops rooms nobody has listened to or changed for maxAge. Their
// snapshots stay in the recovery store, so a later join restores them.
func (s *LiveService) EvictStale(maxAge time.Duration) []string {
	evicted := s.rooms.EvictStale(s.now().Add(-maxAge))
	if len(evicted) > 0 {
		metrics.ActiveRooms.Set(float64(s.rooms.Len()))
		s.logger.Info("evicted stale rooms", "rooms", evicted, "max_age", maxAge)
	}
	return evicted
}

// RunSweeper calls EvictStale every interval until ctx is done.
func (s *LiveService) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictStale(maxAge)
		}
	}
}

// Join adds or refreshes a roster entry. Joining twice with the same identity
// keeps one entry and moves it to the new connection.
func (s *LiveService) Join(ctx context.Context, code string, req JoinRequest) (JoinResult, error) {
	room, err := s.lookup(ctx, code)
	if err != nil {
		return JoinResult{}, err
	}
	out, err := room.join(req)
	if err != nil {
		return JoinResult{}, err
	}
	s.persist(ctx, room)

	result := JoinResult{
		RoomCode:     room.Code(),
		Participant:  out.entry,
		Participants: out.participants,
		Status:       out.status,
	}
	if out.status == domain.StatusInProgress && out.current != noQuestion {
		if current, err := s.questionPayload(ctx, room.QuizID(), out.current); err == nil {
			result.CurrentQuestion = &current
		}
	}
	s.logger.Info("participant joined", "room", room.Code(), "participant", out.entry.ID, "role", out.entry.Role, "new", out.created)
	return result, nil
}

// Leave removes a participant who left on purpose.
func (s *LiveService) Leave(ctx context.Context, code, participantID string) error {
	room, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}
	if room.leave(participantID) {
		s.persist(ctx, room)
	}
	return nil
}

// Disconnect records a dropped connection. The roster entry is kept so the
// client can re-join after reconnecting.
func (s *LiveService) Disconnect(ctx context.Context, code, connectionID string) {
	room, ok := s.rooms.Get(NormalizeCode(code))
	if !ok {
		return
	}
	if room.disconnect(connectionID) {
		s.persist(ctx, room)
	}
}

// Remove evicts a participant on the host's request.
func (s *LiveService) Remove(ctx context.Context, code, participantID string, requester domain.Role) error {
	if requester != domain.RoleTeacher {
		return domain.ErrNotHost
	}
	room, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}
	if err := room.remove(participantID); err != nil {
		return err
	}
	s.persist(ctx, room)
	s.logger.Info("participant removed", "room", room.Code(), "participant", participantID)
	return nil
}

// Reconcile returns the authoritative room state after a page reload. The
// in-memory room wins over the snapshot and rewrites it; a room only known to
// the snapshot is restored from it.
func (s *LiveService) Reconcile(ctx context.Context, code string) (domain.RoomSnapshot, error) {
	room, err := s.lookup(ctx, code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	s.persist(ctx, room)
	return room.Snapshot(), nil
}

// Reset clears the roster on an explicit host request.
func (s *LiveService) Reset(ctx context.Context, code string, requester domain.Role) error {
	if requester != domain.RoleTeacher {
		return domain.ErrNotHost
	}
	room, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}
	room.reset()
	s.persist(ctx, room)
	s.logger.Info("room reset", "room", room.Code())
	return nil
}

// Start moves a waiting room to in progress. Repeated or invalid starts are
// logged no-ops.
func (s *LiveService) Start(ctx context.Context, code string, requester domain.Role) (bool, error) {
	if requester != domain.RoleTeacher {
		return false, domain.ErrNotHost
	}
	room, err := s.lookup(ctx, code)
	if err != nil {
		return false, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID())
	if err != nil {
		return false, err
	}
	changed, err := room.apply(actionStart, Event{Type: EventQuizStarted, Payload: QuizStartedPayload{
		RoomCode:       room.Code(),
		QuizID:         room.QuizID(),
		TotalQuestions: len(quiz.Questions),
	}})
	return s.settle(ctx, room, actionStart, changed, err)
}

// Stop completes the room and flushes results to the participant writer.
func (s *LiveService) Stop(ctx context.Context, code string, requester domain.Role) (bool, error) {
	if requester != domain.RoleTeacher {
		return false, domain.ErrNotHost
	}
	room, err := s.lookup(ctx, code)
	if err != nil {
		return false, err
	}
	changed, err := room.apply(actionStop, Event{Type: EventQuizStopped, Payload: RoomRef{RoomCode: room.Code()}})
	changed, err = s.settle(ctx, room, actionStop, changed, err)
	if err != nil {
		return false, err
	}
	if changed && s.writer != nil {
		if err := s.writer.SaveParticipants(ctx, room.QuizID(), room.results()); err != nil {
			s.logger.Error("saving live results failed", "room", room.Code(), "quiz", room.QuizID(), "error", err)
		}
	}
	return changed, nil
}

func (s *LiveService) settle(ctx context.Context, room *Room, action lifecycleAction, changed bool, err error) (bool, error) {
	if errors.Is(err, domain.ErrInvalidTransition) {
		s.logger.Warn("ignored lifecycle request", "room", room.Code(), "action", action, "status", room.Status())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if changed {
		s.persist(ctx, room)
		s.logger.Info("room status changed", "room", room.Code(), "action", action, "status", room.Status())
	}
	return changed, nil
}

// PushQuestion broadcasts the question at index and resets answered flags.
func (s *LiveService) PushQuestion(ctx context.Context, code string, index int, requester domain.Role) error {
	if requester != domain.RoleTeacher {
		return domain.ErrNotHost
	}
	room, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID())
	if err != nil {
		return err
	}
	q, ok := quiz.QuestionAt(index)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if err := room.pushQuestion(index, q, len(quiz.Questions)); err != nil {
		return err
	}
	s.persist(ctx, room)
	return nil
}

// SubmitAnswer records a participant's answer to the active question.
func (s *LiveService) SubmitAnswer(ctx context.Context, code, participantID string, sub domain.AnswerSubmission) (AnswerResult, error) {
	room, err := s.lookup(ctx, code)
	if err != nil {
		return AnswerResult{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID())
	if err != nil {
		return AnswerResult{}, err
	}
	var question *domain.Question
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == sub.QuestionID {
			question = &quiz.Questions[i]
			break
		}
	}
	if question == nil {
		return AnswerResult{}, domain.ErrQuestionNotFound
	}

	total, err := room.submit(participantID, *question, sub.Answer)
	if err != nil {
		return AnswerResult{}, err
	}
	s.persist(ctx, room)
	return AnswerResult{
		QuestionID: question.ID,
		Correct:    sub.Answer == question.CorrectAnswer,
		TotalScore: total,
	}, nil
}

// Subscribe returns a channel of room broadcasts for one connection. The
// caller must invoke the returned cancel function to avoid leaks.
func (s *LiveService) Subscribe(ctx context.Context, code, connectionID string) (<-chan Event, func(), error) {
	room, err := s.lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := room.subscribe(connectionID)
	release := func() {
		cancel()
		s.rooms.DeleteIfIdle(room.Code())
		metrics.ActiveRooms.Set(float64(s.rooms.Len()))
	}
	return ch, release, nil
}

func (s *LiveService) questionPayload(ctx context.Context, quizID string, index int) (QuestionStartedPayload, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuestionStartedPayload{}, err
	}
	q, ok := quiz.QuestionAt(index)
	if !ok {
		return QuestionStartedPayload{}, domain.ErrQuestionNotFound
	}
	return QuestionStartedPayload{Index: index, TotalQuestions: len(quiz.Questions), Question: q.Public()}, nil
}
