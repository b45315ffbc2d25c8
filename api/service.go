package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"AgriDataHub/internal/logger"
	"AgriDataHub/internal/serviceiface"
)

const (
	defaultAddr            = ":8081"
	defaultShutdownTimeout = 10 * time.Second
)

// GatewayService serves the HTTP API behind the request audit middleware.
type GatewayService struct {
	config  map[string]interface{}
	handler http.Handler
	server  *http.Server
}

// NewGatewayService wraps handler. Recognised config keys: addr (or port),
// read_timeout_seconds, write_timeout_seconds, shutdown_timeout_seconds.
func NewGatewayService(cfg map[string]interface{}, handler http.Handler) serviceiface.Service {
	return &GatewayService{config: cfg, handler: handler}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Addr() string {
	if v, ok := s.config["addr"].(string); ok && v != "" {
		return v
	}
	if p := logger.ToInt(s.config["port"]); p > 0 {
		return fmt.Sprintf(":%d", p)
	}
	return defaultAddr
}

func (s *GatewayService) seconds(key string, def time.Duration) time.Duration {
	if n := logger.ToInt(s.config[key]); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func (s *GatewayService) Start() error {
	if s.handler == nil {
		return errors.New("gateway: no handler configured")
	}
	s.server = &http.Server{
		Addr:         s.Addr(),
		Handler:      AuditRequests(s.handler),
		ReadTimeout:  s.seconds("read_timeout_seconds", 60*time.Second),
		WriteTimeout: s.seconds("write_timeout_seconds", 120*time.Second),
	}
	go func() {
		LogInfo("API Gateway started on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			LogError("Gateway server failed: %v", err)
		}
	}()
	return nil
}

func (s *GatewayService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.seconds("shutdown_timeout_seconds", defaultShutdownTimeout))
	defer cancel()
	return s.server.Shutdown(ctx)
}
