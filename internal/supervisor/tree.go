// Package supervisor はHTTPサーバーとリアルタイムハブをsutureのスーパーバイザーツリーで管理する。
//
// ツリーは2層で構成される。
//   - realtime: WebSocketハブ
//   - api: HTTPサーバー
//
// ハブがpanicしてもAPI層はリクエストを処理し続ける。
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig はスーパーバイザーツリーの再起動ポリシー。
type TreeConfig struct {
	// FailureThreshold はバックオフに入るまでの失敗回数。
	FailureThreshold float64
	// FailureDecay は失敗カウントが減衰する秒数。
	FailureDecay float64
	// FailureBackoff はしきい値超過時の待機時間。
	FailureBackoff time.Duration
	// ShutdownTimeout は各サービスの停止を待つ最大時間。
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig はsutureの既定値と同じ設定を返す。
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree はアプリケーションのスーパーバイザーツリー。
type Tree struct {
	root     *suture.Supervisor
	realtime *suture.Supervisor
	api      *suture.Supervisor
}

// NewTree はTreeを生成する。ゼロ値の項目は既定値で補う。
// イベントはsutureslog経由でloggerに出力される。
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay <= 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff <= 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	// MustHookはポインタレシーバー
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = hook

	root := suture.New("healthtrack", rootSpec)
	rt := suture.New("realtime-layer", childSpec)
	api := suture.New("api-layer", childSpec)
	root.Add(rt)
	root.Add(api)

	return &Tree{root: root, realtime: rt, api: api}
}

// AddRealtimeService はリアルタイム層にサービスを追加する。
func (t *Tree) AddRealtimeService(svc suture.Service) suture.ServiceToken {
	return t.realtime.Add(svc)
}

// AddAPIService はAPI層にサービスを追加する。
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve はctxが終了するまでツリーを実行する。
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground はツリーをバックグラウンドで起動し、終了結果を受け取るチャネルを返す。
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}
