package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question index or ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidRoomCode is returned when no live room matches a code.
	ErrInvalidRoomCode = errors.New("invalid room code")
	// ErrSessionCompleted rejects actions on a room whose quiz has been stopped.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrSessionNotStarted rejects answers and questions before the start.
	ErrSessionNotStarted = errors.New("quiz session not started")
	// ErrNotHost is returned when a non-teacher attempts a host action.
	ErrNotHost = errors.New("only the host can perform this action")
	// ErrParticipantNotFound is returned when a participant is not in the roster.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrAlreadyAnswered rejects a second answer to the current question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrQuestionNotActive rejects answers for a question that is not current.
	ErrQuestionNotActive = errors.New("question is not active")
	// ErrInvalidTransition marks a lifecycle change that is not allowed.
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrMissingIdentity is returned when a join carries neither email nor name.
	ErrMissingIdentity = errors.New("name or email required")
)
