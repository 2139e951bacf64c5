package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	live     *app.LiveService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(live *app.LiveService) *WSHandler {
	return &WSHandler{
		live: live,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: slog.Default().With("component", "ws"),
	}
}

// wsSession is the per-connection state. Only the read loop touches it.
type wsSession struct {
	connID        string
	roomCode      string
	participantID string
	role          domain.Role

	unsubscribe func()
	forwardDone chan struct{}
}

func (s *wsSession) joined() bool { return s.roomCode != "" }

// ServeWS upgrades HTTP requests to websockets and routes room messages to the
// live service. A connection joins at most one room at a time.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Room state outlives the request context.
	ctx := context.WithoutCancel(r.Context())
	sess := &wsSession{connID: uuid.NewString()}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			// keep draining after a failure so producers never block
			if failed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "conn", sess.connID, "error", err)
				failed = true
				continue
			}
			if msg.closeAfter {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "removed from room"),
					time.Now().Add(time.Second))
				_ = conn.Close()
				failed = true
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(ctx, sess, inbound, send, closeSignals); ok {
			send <- reply
		}
	}

	if sess.joined() {
		// A dropped socket is not a leave: the entry stays for the re-join.
		h.live.Disconnect(ctx, sess.roomCode, sess.connID)
	}
	close(closeSignals)
	h.stopForwarding(sess)
	close(send)
	<-writerDone
}

// handle processes one inbound message and returns the direct reply, if any.
func (h *WSHandler) handle(ctx context.Context, sess *wsSession, in inboundMessage, send chan<- outboundMessage[any], closeSignals <-chan struct{}) (outboundMessage[any], bool) {
	switch in.Type {
	case msgPing:
		return outboundMessage[any]{Type: msgPong, Payload: struct{}{}}, true

	case msgJoinRoom:
		var p joinPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(codeBadRequest, "invalid join payload"), true
		}
		return h.join(ctx, sess, p, send, closeSignals)

	case msgReconcileRoom:
		var p roomPayload
		_ = json.Unmarshal(in.Payload, &p)
		code := p.RoomCode
		if code == "" {
			code = sess.roomCode
		}
		snap, err := h.live.Reconcile(ctx, code)
		if err != nil {
			return errorFor(err), true
		}
		return outboundMessage[any]{Type: msgRoomState, Payload: newRoomState(snap)}, true
	}

	if !sess.joined() {
		return errorMessage(codeNotJoined, "join a room first"), true
	}

	switch in.Type {
	case msgLeaveRoom:
		if err := h.live.Leave(ctx, sess.roomCode, sess.participantID); err != nil {
			return errorFor(err), true
		}
		h.stopForwarding(sess)
		sess.roomCode, sess.participantID, sess.role = "", "", ""
		return outboundMessage[any]{}, false

	case msgResetRoom:
		if err := h.live.Reset(ctx, sess.roomCode, sess.role); err != nil {
			return errorFor(err), true
		}
	case msgStartQuiz:
		if _, err := h.live.Start(ctx, sess.roomCode, sess.role); err != nil {
			return errorFor(err), true
		}
	case msgStopQuiz:
		if _, err := h.live.Stop(ctx, sess.roomCode, sess.role); err != nil {
			return errorFor(err), true
		}

	case msgNextQuestion:
		var p nextQuestionPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(codeBadRequest, "invalid question payload"), true
		}
		if err := h.live.PushQuestion(ctx, sess.roomCode, p.Index, sess.role); err != nil {
			return errorFor(err), true
		}

	case msgSubmitAnswer:
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil || p.QuestionID == "" || p.Answer == nil {
			return errorMessage(codeBadRequest, "invalid answer payload"), true
		}
		res, err := h.live.SubmitAnswer(ctx, sess.roomCode, sess.participantID, domain.AnswerSubmission{
			QuestionID: p.QuestionID,
			Answer:     *p.Answer,
			Timestamp:  p.Timestamp,
		})
		if err != nil {
			return errorFor(err), true
		}
		return outboundMessage[any]{Type: msgAnswerAccepted, Payload: res}, true

	case msgRemoveParticipant:
		var p removePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil || p.ParticipantID == "" {
			return errorMessage(codeBadRequest, "invalid remove payload"), true
		}
		if err := h.live.Remove(ctx, sess.roomCode, p.ParticipantID, sess.role); err != nil {
			return errorFor(err), true
		}

	default:
		return errorMessage(codeUnsupported, "unsupported message type"), true
	}
	// Host actions are acknowledged by the room broadcast itself.
	return outboundMessage[any]{}, false
}

func (h *WSHandler) join(ctx context.Context, sess *wsSession, p joinPayload, send chan<- outboundMessage[any], closeSignals <-chan struct{}) (outboundMessage[any], bool) {
	code := app.NormalizeCode(p.RoomCode)
	if sess.joined() && sess.roomCode != code {
		h.live.Disconnect(ctx, sess.roomCode, sess.connID)
		h.stopForwarding(sess)
		sess.roomCode = ""
	}

	res, err := h.live.Join(ctx, code, app.JoinRequest{
		Name:         p.Name,
		Email:        p.Email,
		Role:         domain.ParseRole(p.Role),
		HostKey:      p.HostKey,
		ConnectionID: sess.connID,
	})
	if err != nil {
		return errorFor(err), true
	}
	if sess.participantID != res.Participant.ID {
		// the forwarder watches for its own participant's removal
		h.stopForwarding(sess)
	}
	sess.roomCode = res.RoomCode
	sess.participantID = res.Participant.ID
	sess.role = res.Participant.Role

	// join-success goes out before any broadcast from the new subscription.
	send <- outboundMessage[any]{Type: msgJoinSuccess, Payload: res}
	if sess.unsubscribe == nil {
		events, cancel, err := h.live.Subscribe(ctx, sess.roomCode, sess.connID)
		if err != nil {
			return errorFor(err), true
		}
		sess.unsubscribe = cancel
		sess.forwardDone = make(chan struct{})
		go h.forward(events, send, sess.participantID, closeSignals, sess.forwardDone)
	}
	return outboundMessage[any]{}, false
}

// forward relays room broadcasts to the connection's writer. A participant
// removed by the host gets the notice and then the connection is closed.
func (h *WSHandler) forward(events <-chan app.Event, send chan<- outboundMessage[any], participantID string, closeSignals <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := eventMessage(ev)
			if ev.Type == app.EventParticipantRemoved {
				if ref, ok := ev.Payload.(app.ParticipantRef); ok && ref.ID == participantID {
					msg.closeAfter = true
				}
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			}
			if msg.closeAfter {
				return
			}
		case <-closeSignals:
			return
		}
	}
}

func (h *WSHandler) stopForwarding(sess *wsSession) {
	if sess.unsubscribe == nil {
		return
	}
	sess.unsubscribe()
	<-sess.forwardDone
	sess.unsubscribe = nil
	sess.forwardDone = nil
}
