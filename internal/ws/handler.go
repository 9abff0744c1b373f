package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/clipbingo/clip-bingo-backend/internal/hub"
	"github.com/clipbingo/clip-bingo-backend/internal/room"
	"github.com/clipbingo/clip-bingo-backend/internal/types"
)

// Handler upgrades GET /ws?room=CODE&participant=ID to the room's message
// stream. The participant ID is the stable identity across reconnects: a
// drop and re-dial with the same ID is the same player, and the room
// resyncs them on join.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("room")
		participant := r.URL.Query().Get("participant")
		if code == "" || participant == "" {
			http.Error(w, "missing room or participant", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerMessage, 16)
		rm.Inbox() <- room.Join{ParticipantID: participant, Outbox: out}
		defer func() { rm.Inbox() <- room.Leave{ParticipantID: participant, Outbox: out} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Warn("marshal server message", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"bad json"}`))
				continue
			}

			rm.Inbox() <- room.FromClient{ParticipantID: participant, Msg: cm}
		}
	}
}
