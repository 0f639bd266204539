package worker

import (
	"context"
	"errors"
	"time"

	"github.com/postback-relay/internal/config"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	minRegistryRefreshInterval = 5 * time.Second
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = newAsynqLogger()
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if interval := s.registryRefreshInterval(); interval > 0 {
		go s.runRegistryRefreshLoop(ctx, interval)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// registryRefreshInterval 缓存开启时按 TTL 的一半预热配置快照，避免入站请求集中回源
func (s *Service) registryRefreshInterval() time.Duration {
	if s == nil || s.consumer == nil || s.consumer.Container == nil || s.consumer.RegistryLoader == nil {
		return 0
	}
	cfg := s.consumer.Config
	if cfg == nil || !cfg.Redis.Enabled || cfg.Postback.RegistryCacheSeconds <= 0 {
		return 0
	}
	interval := time.Duration(cfg.Postback.RegistryCacheSeconds) * time.Second / 2
	if interval < minRegistryRefreshInterval {
		interval = minRegistryRefreshInterval
	}
	return interval
}

func (s *Service) runRegistryRefreshLoop(ctx context.Context, interval time.Duration) {
	loader := s.consumer.RegistryLoader
	runOnce := func() {
		snapshot, err := loader.Refresh(ctx)
		if err != nil {
			logger.Warnw("worker_registry_refresh_failed", "error", err)
			return
		}
		logger.Debugw("worker_registry_refreshed",
			"providers", len(snapshot.Providers),
			"partners", len(snapshot.Partners),
		)
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
