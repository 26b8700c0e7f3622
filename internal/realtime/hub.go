// Package realtime は新規登録された計測値をWebSocketでリアルタイム配信する。
//
// 配信は登録したユーザー本人の接続にのみ行う。Publishは書き込み側を
// ブロックせず、キューが満杯の場合はイベントを破棄する。
// 接続前に発生したイベントの再送は行わない。
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/hitoshi/healthtrack/internal/metrics"
)

// イベント種別
const (
	EventNewBloodPressure = "newBloodPressure"
	EventNewSpO2          = "newSpO2"
	EventNewWeight        = "newWeight"

	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// DefaultBroadcastBuffer はHubの配信キュー長の既定値。
const DefaultBroadcastBuffer = 256

// Message はクライアントへ送るJSONフレーム。
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// envelope は配信先ユーザーを付けたMessage。
type envelope struct {
	userID  string
	message Message
}

// Publisher は計測値イベントの配信インターフェース。ハンドラーから利用する。
type Publisher interface {
	Publish(userID, event string, payload any)
}

// Hub は接続中のクライアントを管理し、イベントを配信する。
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	metrics    metrics.MetricsCollector
	mu         sync.RWMutex
}

// NewHub はHubを生成する。bufferが1未満の場合はDefaultBroadcastBufferを使う。
func NewHub(buffer int, mc metrics.MetricsCollector) *Hub {
	if buffer < 1 {
		buffer = DefaultBroadcastBuffer
	}
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan envelope, buffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    mc,
	}
}

// Register はクライアントを登録する。Hubが停止済みの場合はfalseを返す。
func (h *Hub) Register(ctx context.Context, c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// reply はクライアント1件にメッセージを送る。登録解除済みなら何もしない。
// send の close は mu の保持中にのみ行うため、ここで閉じたチャネルに送ることはない。
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Publish はuserIDの接続へイベントを配信する。ブロックしない。
// 配信キューが満杯の場合はイベントを破棄して警告ログを出す。
func (h *Hub) Publish(userID, event string, payload any) {
	env := envelope{userID: userID, message: Message{Type: event, Data: payload}}

	select {
	case h.broadcast <- env:
	default:
		h.metrics.RecordBroadcastDropped(event)
		slog.Warn("broadcast channel full, dropping event",
			slog.String("event", event),
			slog.String("user_id", userID),
		)
	}
}

// RunWithContext はコンテキストが終了するまでイベントループを回す。
// 終了時は全クライアントを切断し、ctx.Err()を返す。
// panic後にスーパーバイザーから再実行されても接続中のクライアントは維持される。
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// 登録・解除を配信より優先する
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.addClient(c)
			continue
		case c := <-h.unregister:
			h.removeClient(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetRealtimeClients(n)
	slog.Info("realtime client connected",
		slog.String("user_id", c.userID),
		slog.Int("total_clients", n),
	)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetRealtimeClients(n)
	slog.Info("realtime client disconnected",
		slog.String("user_id", c.userID),
		slog.Int("total_clients", n),
	)
}

// deliver は宛先ユーザーのクライアントへID順に送る。
// 送信キューが満杯のクライアントは切断する。
func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make([]*Client, 0, 2)
	for c := range h.clients {
		if c.userID == env.userID {
			targets = append(targets, c)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, c := range targets {
		select {
		case c.send <- env.message:
		default:
			close(c.send)
			delete(h.clients, c)
			slog.Warn("realtime client too slow, disconnecting",
				slog.String("user_id", c.userID),
			)
		}
	}

	h.metrics.RecordBroadcast(env.message.Type)
	h.metrics.SetRealtimeClients(len(h.clients))
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	h.metrics.SetRealtimeClients(0)

	reason := "context_canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "context_deadline"
	}
	slog.Info("realtime hub stopped",
		slog.String("component", "realtime-hub"),
		slog.String("reason", reason),
		slog.Int("clients_closed", n),
	)
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage はMessageをJSONに変換する。
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// compile-time interface check
var _ Publisher = (*Hub)(nil)
