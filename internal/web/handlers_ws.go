package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cyoa/internal/engine"
	"cyoa/internal/transition"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	wsWriteWait  = 10 * time.Second
	wsOutboxSize = 16
)

// wsCommand is a client message. Type is one of choose, action,
// transition-end, restart or state.
type wsCommand struct {
	Type   string `json:"type"`
	Choice string `json:"choice,omitempty"`
}

// wsEvent is a server message: a fresh view or a rejected command.
type wsEvent struct {
	Type  string           `json:"type"`
	View  *engine.View     `json:"view,omitempty"`
	Plan  *transition.Plan `json:"plan,omitempty"`
	Error string           `json:"error,omitempty"`
}

// GET /ws streams every view of the caller's engine and accepts moves. The
// player cookie must already exist.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(r)
	if id == "" {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	e, err := s.engineFor(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	log := s.log().With(zap.String("player", id))
	log.Debug("WebSocket connected")

	ctx, cancel := context.WithCancel(context.Background())
	outbox := make(chan wsEvent, wsOutboxSize)
	push := func(ev wsEvent) {
		select {
		case outbox <- ev:
		case <-ctx.Done():
		default:
			log.Warn("WebSocket outbox full, dropping event", zap.String("type", ev.Type))
		}
	}
	unsubscribe := e.Subscribe(func(v engine.View) {
		push(wsEvent{Type: "view", View: &v})
	})

	go s.writePump(ctx, conn, outbox, log)

	v := started(ctx, e)
	push(wsEvent{Type: "view", View: &v})

	s.readPump(ctx, conn, e, push, log)

	unsubscribe()
	cancel()
	_ = conn.Close()
	log.Debug("WebSocket disconnected")
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, e *engine.Engine, push func(wsEvent), log *zap.Logger) {
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read failed", zap.Error(err))
			}
			return
		}

		var (
			plan transition.Plan
			err  error
		)
		switch cmd.Type {
		case "choose":
			plan, err = e.SelectChoice(ctx, cmd.Choice)
		case "action":
			plan, err = e.TakeAction(ctx)
		case "transition-end":
			e.AnimationEnded()
			continue
		case "restart":
			e.Restart(ctx)
			continue
		case "state":
			v := e.View()
			push(wsEvent{Type: "view", View: &v})
			continue
		default:
			push(wsEvent{Type: "error", Error: "unknown command " + cmd.Type})
			continue
		}
		if err != nil {
			push(wsEvent{Type: "error", Error: err.Error()})
			continue
		}
		if plan.Animated() || plan.Sound != "" {
			push(wsEvent{Type: "transition", Plan: &plan})
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, outbox <-chan wsEvent, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		}
	}
}
