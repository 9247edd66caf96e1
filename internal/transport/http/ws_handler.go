package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const writeWait = 10 * time.Second

// WSHandler streams quiz snapshots to presentation clients and accepts answers over
// the same socket.
type WSHandler struct {
	service  *app.QuizService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades GET /ws?quizId= and pushes a "snapshot" message on every change.
// Clients may send {"type":"answer","payload":{...}} and receive "answerResult".
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, err := parseID(r.URL.Query().Get("quizId"))
	if err != nil {
		writeError(w, h.log, err, "Invalid quizId", nil)
		return
	}
	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		writeError(w, h.log, err, "Failed to subscribe", nil)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	log := h.log.WithField("quiz_id", quizID)
	log.Debug("ws subscriber connected")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// sole writer on conn
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write failed")
				// unblock the reader so the handler can unwind
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			reply = h.answer(r, inbound.Payload, quizID)
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		send <- reply
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ws subscriber disconnected")
}

func (h *WSHandler) answer(r *http.Request, raw json.RawMessage, quizID int64) outboundMessage[any] {
	var in domain.NewAnswer
	if err := json.Unmarshal(raw, &in); err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
	}
	participant, err := h.service.GetParticipant(r.Context(), in.ParticipantID)
	if err == nil && participant.QuizID != quizID {
		err = domain.ErrParticipantNotFound
	}
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	answer, err := h.service.SubmitAnswer(r.Context(), in)
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	return outboundMessage[any]{Type: "answerResult", Payload: answer}
}
