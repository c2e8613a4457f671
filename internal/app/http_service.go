package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/asterdex-mlm/internal/config"
)

// HTTPService 管理端与会员端 API
type HTTPService struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPService 按服务器配置创建 HTTP 服务
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       secondsOr(cfg.ReadTimeoutSeconds, 15),
			WriteTimeout:      secondsOr(cfg.WriteTimeoutSeconds, 60),
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string {
	return "http"
}

// Start 监听并阻塞直到 Stop
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	listener := s.listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", s.server.Addr)
		if err != nil {
			return err
		}
	}
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭，等待进行中的请求完成
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
