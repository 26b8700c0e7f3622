package realtime

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	// clientSendBuffer はクライアントごとの送信キュー長。満杯になったクライアントは切断する。
	clientSendBuffer = 256
)

var clientIDCounter atomic.Uint64

// Client はWebSocket接続とHubの仲介役。1接続につき1つ生成する。
type Client struct {
	id     uint64
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
}

// NewClient は認証済みユーザーの接続からClientを生成する。
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, clientSendBuffer),
	}
}

// ID はクライアントの識別子を返す。
func (c *Client) ID() uint64 {
	return c.id
}

// UserID は接続しているユーザーのIDを返す。
func (c *Client) UserID() string {
	return c.userID
}

// readPump はクライアントからのメッセージを読み続ける。
// 受信はpingへの応答のみで、切断時にHubから登録解除する。
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Error("failed to set read deadline", slog.String("error", err.Error()))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected websocket close",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			c.hub.reply(c, Message{Type: MessageTypePong})
		}
	}
}

// writePump はHubからのメッセージを接続へ書き込み、定期的にpingを送る。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hubが送信キューを閉じた
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frame, err := MarshalMessage(message)
			if err != nil {
				slog.Error("failed to encode realtime message",
					slog.String("type", message.Type),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start は読み書きのgoroutineを起動する。Hubへの登録後に呼ぶこと。
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
