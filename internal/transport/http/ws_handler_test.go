package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type testServer struct {
	server *httptest.Server
	live   *app.LiveService
	store  *memory.StaticStore
	ticket app.RoomTicket
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStaticStore(sampleQuiz())
	quizRepo := memory.NewQuizRepository(store, time.Minute)
	live := app.NewLiveService(memory.NewRoomStore(), memory.NewSnapshotStore(), quizRepo, app.WithParticipantWriter(store))
	grouping := app.NewGroupingService(quizRepo, store, app.DefaultGroupingLimits())

	server := httptest.NewServer(NewRouter(grouping, live))
	t.Cleanup(server.Close)

	ticket, err := live.CreateRoom(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return &testServer{server: server, live: live, store: store, ticket: ticket}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u := "ws" + s.server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketQuizFlow(t *testing.T) {
	ts := newTestServer(t)
	code := ts.ticket.RoomCode

	host := ts.dial(t)
	send(t, host, "join-room", map[string]any{
		"roomCode": code, "name": "Bu Sari", "role": "TEACHER", "hostKey": ts.ticket.HostKey,
	})
	_, payload := readNext(host, t, "join-success")
	if payload["participant"].(map[string]any)["role"] != "TEACHER" {
		t.Fatalf("expected teacher entry, got %v", payload["participant"])
	}

	student := ts.dial(t)
	send(t, student, "join-room", map[string]any{"roomCode": strings.ToLower(code), "name": "Ani", "email": "ani@example.com"})
	_, payload = readNext(student, t, "join-success")
	if payload["status"] != "waiting" {
		t.Fatalf("expected waiting status, got %v", payload["status"])
	}
	participants := payload["participants"].([]any)
	if len(participants) != 1 {
		t.Fatalf("expected one participant, got %d", len(participants))
	}
	_, joined := readNext(host, t, "participant-joined")
	if joined["name"] != "Ani" {
		t.Fatalf("unexpected joined payload %v", joined)
	}

	// students cannot drive the lifecycle
	send(t, student, "start-quiz", nil)
	_, errPayload := readNext(student, t, "error")
	if errPayload["code"] != "not_host" {
		t.Fatalf("expected not_host, got %v", errPayload)
	}

	send(t, host, "start-quiz", nil)
	readNext(host, t, "quiz-started")
	_, started := readNext(student, t, "quiz-started")
	if started["totalQuestions"].(float64) != 1 {
		t.Fatalf("unexpected quiz-started payload %v", started)
	}

	send(t, host, "next-question", map[string]any{"index": 0})
	readNext(host, t, "question-started")
	_, question := readNext(student, t, "question-started")
	q := question["question"].(map[string]any)
	if _, leaked := q["correctAnswer"]; leaked {
		t.Fatalf("correct answer leaked to students: %v", q)
	}

	send(t, student, "submit-answer", map[string]any{"questionId": "q1", "answer": 1})
	_, accepted := readNext(student, t, "answer-accepted")
	if accepted["correct"] != true || accepted["totalScore"].(float64) != 1 {
		t.Fatalf("unexpected answer result %v", accepted)
	}
	send(t, student, "submit-answer", map[string]any{"questionId": "q1", "answer": 1})
	_, errPayload = readNext(student, t, "error")
	if errPayload["code"] != "already_answered" {
		t.Fatalf("expected already_answered, got %v", errPayload)
	}

	send(t, host, "stop-quiz", nil)
	readNext(host, t, "quiz-stopped")
	readNext(student, t, "quiz-stopped")
	// the host's messages are handled in order, so the pong means stop-quiz
	// (and its result flush) has finished
	send(t, host, "ping", nil)
	readNext(host, t, "pong")

	saved, err := ts.store.ListParticipants(context.Background(), "quiz-1")
	if err != nil || len(saved) != 1 || saved[0].Score != 1 {
		t.Fatalf("expected flushed result, got %v (err %v)", saved, err)
	}

	late := ts.dial(t)
	send(t, late, "join-room", map[string]any{"roomCode": code, "name": "Budi"})
	_, errPayload = readNext(late, t, "error")
	if errPayload["code"] != "session_completed" {
		t.Fatalf("expected session_completed, got %v", errPayload)
	}
}

func TestWebSocketInvalidRoomAndPing(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, "ping", nil)
	readNext(conn, t, "pong")

	send(t, conn, "join-room", map[string]any{"roomCode": "NOPE22", "name": "Ani"})
	_, payload := readNext(conn, t, "error")
	if payload["code"] != "invalid_room_code" {
		t.Fatalf("expected invalid_room_code, got %v", payload)
	}

	send(t, conn, "submit-answer", map[string]any{"questionId": "q1", "answer": 0})
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "not_joined" {
		t.Fatalf("expected not_joined, got %v", payload)
	}

	send(t, conn, "dance", nil)
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "unsupported_type" {
		t.Fatalf("expected unsupported_type, got %v", payload)
	}
}

func TestWebSocketRemovedParticipantIsDisconnected(t *testing.T) {
	ts := newTestServer(t)
	code := ts.ticket.RoomCode

	host := ts.dial(t)
	send(t, host, "join-room", map[string]any{"roomCode": code, "name": "Bu Sari", "role": "TEACHER", "hostKey": ts.ticket.HostKey})
	readNext(host, t, "join-success")

	student := ts.dial(t)
	send(t, student, "join-room", map[string]any{"roomCode": code, "name": "Ani"})
	_, payload := readNext(student, t, "join-success")
	studentID := payload["participant"].(map[string]any)["id"].(string)
	readNext(host, t, "participant-joined")

	send(t, host, "remove-participant", map[string]any{"participantId": studentID})
	_, removed := readNext(student, t, "participant-removed")
	if removed["id"] != studentID {
		t.Fatalf("unexpected removed payload %v", removed)
	}
	readNext(host, t, "participant-removed")

	_ = student.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	if err := student.ReadJSON(&msg); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close after removal, got %v (msg %v)", err, msg)
	}
}

func TestWebSocketDropKeepsRosterEntry(t *testing.T) {
	ts := newTestServer(t)
	code := ts.ticket.RoomCode

	first := ts.dial(t)
	send(t, first, "join-room", map[string]any{"roomCode": code, "name": "Ani", "email": "ani@example.com"})
	_, payload := readNext(first, t, "join-success")
	id := payload["participant"].(map[string]any)["id"]
	first.Close()

	// wait for the server to observe the drop
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := ts.live.Reconcile(context.Background(), code)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if len(snap.Roster) != 1 {
			t.Fatalf("dropped connection must keep the entry, got %d", len(snap.Roster))
		}
		if !snap.Roster[0].Connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("entry never marked offline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	second := ts.dial(t)
	send(t, second, "join-room", map[string]any{"roomCode": code, "name": "Ani", "email": "ani@example.com"})
	_, payload = readNext(second, t, "join-success")
	if payload["participant"].(map[string]any)["id"] != id {
		t.Fatalf("expected same participant after reconnect")
	}
	if n := len(payload["participants"].([]any)); n != 1 {
		t.Fatalf("expected no duplicate entries, got %d", n)
	}

	send(t, second, "reconcile-room", nil)
	_, state := readNext(second, t, "room-state")
	if _, leaked := state["hostKey"]; leaked {
		t.Fatalf("host key leaked in room state")
	}
	if n := len(state["participants"].([]any)); n != 1 {
		t.Fatalf("expected one participant in room state, got %d", n)
	}
}

func TestWebSocketDropPushesRoomState(t *testing.T) {
	ts := newTestServer(t)
	code := ts.ticket.RoomCode

	host := ts.dial(t)
	send(t, host, "join-room", map[string]any{"roomCode": code, "name": "Bu Sari", "role": "TEACHER", "hostKey": ts.ticket.HostKey})
	readNext(host, t, "join-success")

	student := ts.dial(t)
	send(t, student, "join-room", map[string]any{"roomCode": code, "name": "Ani"})
	readNext(student, t, "join-success")
	readNext(host, t, "participant-joined")

	student.Close()

	_, state := readNext(host, t, "room-state")
	if _, leaked := state["hostKey"]; leaked {
		t.Fatalf("host key leaked in pushed room state")
	}
	participants := state["participants"].([]any)
	if len(participants) != 1 {
		t.Fatalf("expected only the student in room state, got %v", participants)
	}
	entry := participants[0].(map[string]any)
	if entry["name"] != "Ani" || entry["connected"] != false {
		t.Fatalf("expected Ani offline, got %v", entry)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "What is 2 + 2?",
					Options:       []string{"3", "4", "5"},
					CorrectAnswer: 1,
					Category:      "aritmatika",
				},
			},
		},
	}
}
