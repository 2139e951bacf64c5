package http

import (
	"encoding/json"
	"errors"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

// Inbound message types.
const (
	msgJoinRoom          = "join-room"
	msgLeaveRoom         = "leave-room"
	msgResetRoom         = "reset-room"
	msgStartQuiz         = "start-quiz"
	msgStopQuiz          = "stop-quiz"
	msgNextQuestion      = "next-question"
	msgSubmitAnswer      = "submit-answer"
	msgRemoveParticipant = "remove-participant"
	msgReconcileRoom     = "reconcile-room"
	msgPing              = "ping"
)

// Outbound message types not driven by room broadcasts.
const (
	msgJoinSuccess    = "join-success"
	msgAnswerAccepted = "answer-accepted"
	msgRoomState      = "room-state"
	msgError          = "error"
	msgPong           = "pong"
)

// Error codes let clients tell failures apart without parsing messages.
const (
	codeInvalidRoomCode     = "invalid_room_code"
	codeSessionCompleted    = "session_completed"
	codeSessionNotStarted   = "session_not_started"
	codeNotHost             = "not_host"
	codeParticipantNotFound = "participant_not_found"
	codeAlreadyAnswered     = "already_answered"
	codeQuestionNotActive   = "question_not_active"
	codeQuestionNotFound    = "question_not_found"
	codeQuizNotFound        = "quiz_not_found"
	codeMissingIdentity     = "missing_identity"
	codeNotJoined           = "not_joined"
	codeBadRequest          = "bad_request"
	codeUnsupported         = "unsupported_type"
	codeInternal            = "internal_error"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	HostKey  string `json:"hostKey"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type nextQuestionPayload struct {
	RoomCode string `json:"roomCode"`
	Index    int    `json:"index"`
}

type answerPayload struct {
	RoomCode   string    `json:"roomCode"`
	QuestionID string    `json:"questionId"`
	Answer     *int      `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
}

type removePayload struct {
	RoomCode      string `json:"roomCode"`
	ParticipantID string `json:"participantId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`

	// closeAfter asks the writer to end the connection once this is sent.
	closeAfter bool
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// roomState is the client view of a room snapshot: the host key and the
// host's roster entry stay on the server.
type roomState struct {
	RoomCode        string               `json:"roomCode"`
	QuizID          string               `json:"quizId"`
	Status          domain.SessionStatus `json:"status"`
	CurrentQuestion int                  `json:"currentQuestion"`
	Participants    []domain.RosterEntry `json:"participants"`
}

func newRoomState(snap domain.RoomSnapshot) roomState {
	state := roomState{
		RoomCode:        snap.RoomCode,
		QuizID:          snap.QuizID,
		Status:          snap.Status,
		CurrentQuestion: snap.CurrentQuestion,
		Participants:    []domain.RosterEntry{},
	}
	for _, e := range snap.Roster {
		if e.Role != domain.RoleTeacher {
			state.Participants = append(state.Participants, e)
		}
	}
	return state
}

func errorMessage(code, message string) outboundMessage[any] {
	return outboundMessage[any]{Type: msgError, Payload: errorPayload{Code: code, Message: message}}
}

// errorFor maps service errors onto wire error codes.
func errorFor(err error) outboundMessage[any] {
	code := errorCode(err)
	if code == codeInternal {
		return errorMessage(code, "internal error")
	}
	return errorMessage(code, err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRoomCode):
		return codeInvalidRoomCode
	case errors.Is(err, domain.ErrSessionCompleted):
		return codeSessionCompleted
	case errors.Is(err, domain.ErrSessionNotStarted):
		return codeSessionNotStarted
	case errors.Is(err, domain.ErrNotHost):
		return codeNotHost
	case errors.Is(err, domain.ErrParticipantNotFound):
		return codeParticipantNotFound
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return codeAlreadyAnswered
	case errors.Is(err, domain.ErrQuestionNotActive):
		return codeQuestionNotActive
	case errors.Is(err, domain.ErrQuestionNotFound):
		return codeQuestionNotFound
	case errors.Is(err, domain.ErrQuizNotFound):
		return codeQuizNotFound
	case errors.Is(err, domain.ErrMissingIdentity):
		return codeMissingIdentity
	default:
		return codeInternal
	}
}

func eventMessage(ev app.Event) outboundMessage[any] {
	if snap, ok := ev.Payload.(domain.RoomSnapshot); ok {
		return outboundMessage[any]{Type: string(ev.Type), Payload: newRoomState(snap)}
	}
	return outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}
}
