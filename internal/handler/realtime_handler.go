package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/healthtrack/internal/realtime"
)

// RealtimeHandler は計測値のリアルタイム配信用WebSocketエンドポイント。
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeHandler はRealtimeHandlerを生成する。
// Originヘッダーが付与されている場合はallowedOriginと一致するものだけを受け付ける。
func NewRealtimeHandler(hub *realtime.Hub, allowedOrigin string) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Serve はWebSocketへアップグレードし、認証済みユーザーの接続としてHubに登録する。
// GET /api/realtime
func (h *RealtimeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgraderがエラーレスポンスを書き込み済み
		slog.Warn("websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	client := realtime.NewClient(h.hub, conn, userID)
	if !h.hub.Register(r.Context(), client) {
		slog.Warn("realtime hub is not running, closing connection", slog.String("user_id", userID))
		_ = conn.Close()
		return
	}
	client.Start()

	slog.Debug("realtime client connected",
		slog.String("user_id", userID),
		slog.Uint64("client_id", client.ID()),
	)
}
