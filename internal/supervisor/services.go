package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer は*http.Serverのライフサイクルメソッド。
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService はHTTPサーバーをsuture.Serviceとして実行する。
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService はHTTPServerServiceを生成する。
// shutdownTimeoutが0以下の場合は30秒を使う。
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve はListenAndServeを開始し、ctx終了時にグレースフルシャットダウンする。
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// 元のctxは終了済みのため新しいctxでShutdownする
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPServerService) String() string {
	return "http-server"
}

// ContextRunner はRunWithContextを持つイベントループ。*realtime.Hubが満たす。
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService はリアルタイムハブをsuture.Serviceとして実行する。
type HubService struct {
	hub ContextRunner
}

// NewHubService はHubServiceを生成する。
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve はハブのイベントループに委譲する。
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string {
	return "realtime-hub"
}
