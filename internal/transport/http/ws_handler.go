package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"evaluation-service/internal/app"
	"evaluation-service/internal/domain"
	"evaluation-service/internal/engine"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.EvaluationService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.EvaluationService) *WSHandler {
	return &WSHandler{
		service: service,
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

type selectPayload struct {
	Question int `json:"question"`
	Option   int `json:"option"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startedPayload struct {
	SessionID    string         `json:"sessionId"`
	EvaluationID string         `json:"evaluationId"`
	Title        string         `json:"title"`
	Reporting    bool           `json:"reporting"`
	Summary      domain.Summary `json:"summary"`
}

// statePayload is a snapshot plus the displayed question while navigating.
type statePayload struct {
	engine.Snapshot
	Question *engine.QuestionView `json:"question,omitempty"`
}

type confirmPayload struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and mounts one evaluation session per connection.
// mode=local keeps results on the connection; anything else reports them.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.URL.Query().Get("evaluationId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if evaluationID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing evaluationId, userId, or name", http.StatusBadRequest)
		return
	}
	reporting := r.URL.Query().Get("mode") != "local"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Start(r.Context(), app.StartRequest{
		EvaluationID: evaluationID,
		Participant:  domain.Participant{ID: userID, Name: displayName},
		Reporting:    reporting,
	})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	eng := session.Engine
	// Unmounting the connection unmounts the session and its countdown.
	defer eng.Close()

	summary, _ := h.service.Summary(r.Context(), evaluationID)
	updates, cancel := eng.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error session=%s: %v", session.ID, err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		SessionID:    session.ID,
		EvaluationID: session.EvaluationID,
		Title:        session.Title,
		Reporting:    session.Reporting,
		Summary:      summary,
	}}

	go func() {
		defer close(updatesDone)
		lastResult := 0
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				out := []outboundMessage[any]{{Type: "state", Payload: statePayloadFor(eng, snap)}}
				// Covers both submissions and countdown expiry.
				if snap.Result != nil && snap.Result.Attempt > lastResult {
					lastResult = snap.Result.Attempt
					out = append(out, outboundMessage[any]{Type: "result", Payload: snap.Result})
				}
				for _, msg := range out {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
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
		h.service.Touch(r.Context(), session.ID)
		reply, done := h.handle(eng, inbound)
		if reply != nil {
			send <- *reply
		}
		if done {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one inbound message. State changes reach the client through
// the snapshot subscription, so only direct answers are returned here.
func (h *WSHandler) handle(eng *engine.Session, inbound inboundMessage) (*outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid select payload")), false
		}
		err = eng.SelectAnswer(payload.Question, payload.Option)
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid goto payload")), false
		}
		err = eng.GoTo(payload.Index)
	case "next":
		err = eng.Next()
	case "previous":
		err = eng.Previous()
	case "submit":
		var sub engine.Submission
		sub, err = eng.RequestSubmit()
		if err == nil && sub.NeedsConfirmation {
			return &outboundMessage[any]{Type: "confirm", Payload: confirmPayload{Answered: sub.Answered, Total: sub.Total}}, false
		}
	case "confirmSubmit":
		_, err = eng.ConfirmSubmit()
	case "review":
		if err = eng.EnterReview(); err == nil {
			var items []engine.ReviewItem
			if items, err = eng.Review(); err == nil {
				return &outboundMessage[any]{Type: "review", Payload: items}, false
			}
		}
	case "exitReview":
		err = eng.ExitReview()
	case "retry":
		err = eng.Retry()
	case "close":
		eng.Close()
		return &outboundMessage[any]{Type: "closed", Payload: struct{}{}}, true
	default:
		return errorMessage(errors.New("unsupported message type")), false
	}
	if err != nil {
		return errorMessage(err), false
	}
	return nil, false
}

func statePayloadFor(eng *engine.Session, snap engine.Snapshot) statePayload {
	state := statePayload{Snapshot: snap}
	if snap.Mode == engine.ModeActive || snap.Mode == engine.ModeSubmitted {
		if view, err := eng.Current(); err == nil {
			state.Question = &view
		}
	}
	return state
}

func errorMessage(err error) *outboundMessage[any] {
	return &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
