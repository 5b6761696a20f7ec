package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codescape/internal/frame"
	"codescape/internal/metrics"
	"codescape/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  16 << 10,
	WriteBufferSize: 64 << 10,
}

// WSAck answers every interaction received over the websocket
type WSAck struct {
	Type  string `json:"type"`
	Kind  string `json:"kind,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ServeWebSocket accepts interactions from the presentation layer and
// streams session events back over the same connection
func (h *SessionHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	clientID := uuid.NewString()
	logger := h.logger.With("client", clientID)
	logger.Info("websocket client connected")
	metrics.StreamClients.WithLabelValues("websocket").Inc()
	defer metrics.StreamClients.WithLabelValues("websocket").Dec()

	outbound := make(chan any, 64)
	done := make(chan struct{})
	defer close(done)

	events := make(chan service.Event, 64)
	if h.bus != nil {
		h.bus.Subscribe(events)
		defer h.bus.Unsubscribe(events)
	}

	// gorilla connections allow one concurrent writer
	go h.wsWriter(ws, outbound, events, done)

	ws.SetReadLimit(wsMaxMessage)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			logger.Info("websocket client disconnected")
			return
		}

		ack := WSAck{Type: "ack", OK: true}
		var it frame.Interaction
		if err := json.Unmarshal(data, &it); err != nil {
			ack.OK, ack.Error = false, "invalid JSON: "+err.Error()
		} else {
			ack.Kind = string(it.Kind)
			if err := h.svc.Submit(it); err != nil {
				ack.OK, ack.Error = false, err.Error()
				if !errors.Is(err, frame.ErrInvalidInteraction) {
					logger.Debug("interaction rejected", "kind", it.Kind, "error", err)
				}
			}
		}

		select {
		case outbound <- ack:
		default:
			logger.Warn("websocket client is slow, dropping ack")
		}
	}
}

func (h *SessionHandler) wsWriter(ws *websocket.Conn, outbound <-chan any, events <-chan service.Event, done <-chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(v any) bool {
		ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(v); err != nil {
			h.logger.Debug("failed to write websocket JSON", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case v := <-outbound:
			if !write(v) {
				return
			}
		case ev := <-events:
			if !write(ev) {
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
