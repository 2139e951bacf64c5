package app

import "classquiz-service/internal/domain"

// EventType names a room broadcast. The values are the realtime wire names.
type EventType string

const (
	EventParticipantJoined  EventType = "participant-joined"
	EventParticipantLeft    EventType = "participant-left"
	EventParticipantRemoved EventType = "participant-removed"
	EventRoomReset          EventType = "room-reset-success"
	EventQuizStarted        EventType = "quiz-started"
	EventQuizStopped        EventType = "quiz-stopped"
	EventQuestionStarted    EventType = "question-started"
	// EventRoomState carries a domain.RoomSnapshot; transports must strip the
	// host key before sending it on.
	EventRoomState EventType = "room-state"
)

// Event is one broadcast to every subscriber of a room.
type Event struct {
	Type    EventType
	Payload any
}

// ParticipantRef identifies a roster entry in leave/remove broadcasts.
type ParticipantRef struct {
	ID string `json:"id"`
}

// RoomRef carries the room code for room-wide notifications.
type RoomRef struct {
	RoomCode string `json:"roomCode"`
}

// QuizStartedPayload is broadcast when the host starts the quiz.
type QuizStartedPayload struct {
	RoomCode       string `json:"roomCode"`
	QuizID         string `json:"quizId"`
	TotalQuestions int    `json:"totalQuestions"`
}

// QuestionStartedPayload carries the active question without its answer key.
type QuestionStartedPayload struct {
	Index          int                   `json:"index"`
	TotalQuestions int                   `json:"totalQuestions"`
	Question       domain.PublicQuestion `json:"question"`
}
