package domain

import "time"

// Question models a multiple-choice question. Category is optional on older
// records; read it through ResolvedCategory.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Category      string   `json:"category,omitempty"`
	Subcategory   string   `json:"subcategory,omitempty"`
}

// ResolvedCategory returns the canonical category for the question.
func (q Question) ResolvedCategory() Category {
	return ResolveCategory(q.Category)
}

// ResolvedSubcategory returns the subcategory, defaulting to "general".
func (q Question) ResolvedSubcategory() string {
	return ResolveSubcategory(q.Subcategory)
}

// PublicQuestion is the question as sent to students: no correct answer.
type PublicQuestion struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:          q.ID,
		Prompt:      q.Prompt,
		Options:     q.Options,
		Category:    q.ResolvedCategory(),
		Subcategory: q.ResolvedSubcategory(),
	}
}

// Quiz is a collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// QuestionAt returns the question at index i.
func (q Quiz) QuestionAt(i int) (Question, bool) {
	if i < 0 || i >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[i], true
}

// Participant is one student's submission for a quiz. QuizID never changes
// after creation.
type Participant struct {
	ID        string         `json:"id"`
	QuizID    string         `json:"quizId"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Score     int            `json:"score"`
	Answers   map[string]int `json:"answers"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Answer returns the chosen option index for a question, if answered.
func (p Participant) Answer(questionID string) (int, bool) {
	if p.Answers == nil {
		return 0, false
	}
	a, ok := p.Answers[questionID]
	return a, ok
}

// AnswerSubmission is a single answer coming from a live client.
type AnswerSubmission struct {
	QuestionID string
	Answer     int
	Timestamp  time.Time
}

// Role distinguishes the host of a live room from its students.
type Role string

const (
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// ParseRole maps client-supplied role strings; anything unknown is a student.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleTeacher, "teacher":
		return RoleTeacher
	default:
		return RoleStudent
	}
}

// RosterEntry is a connected member of a live room.
type RosterEntry struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	Connected    bool      `json:"connected"`
	Score        int       `json:"score"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// SessionStatus is the lifecycle state of a live room.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// RoomSnapshot is the recovery copy of a live room's roster and state.
type RoomSnapshot struct {
	RoomCode        string                    `json:"roomCode"`
	QuizID          string                    `json:"quizId"`
	HostKey         string                    `json:"hostKey"`
	Status          SessionStatus             `json:"status"`
	CurrentQuestion int                       `json:"currentQuestion"`
	CurrentID       string                    `json:"currentQuestionId,omitempty"`
	Roster          []RosterEntry             `json:"roster"`
	Answers         map[string]map[string]int `json:"answers,omitempty"`
	UpdatedAt       time.Time                 `json:"updatedAt"`
}
