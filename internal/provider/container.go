package provider

import (
	"time"

	"github.com/postback-relay/internal/cache"
	"github.com/postback-relay/internal/config"
	"github.com/postback-relay/internal/events"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/metrics"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/queue"
	"github.com/postback-relay/internal/repository"
	"github.com/postback-relay/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	DB              *gorm.DB
	QueueClient     *queue.Client
	Publisher       events.Publisher
	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.PostbackMetrics

	// Repositories
	RegistryRepo    repository.PostbackRegistryRepository
	LedgerRepo      repository.LedgerRepository
	PostbackLogRepo repository.PostbackLogRepository
	ReceiptRepo     repository.PostbackReceiptRepository

	// Services
	RegistryLoader      *service.RegistryLoader
	IdentityResolver    *service.IdentityResolver
	AuditService        *service.AuditService
	SettlementService   *service.SettlementService
	ForwarderService    *service.ForwarderService
	PostbackService     *service.PostbackService
	OperatorAuthService *service.OperatorAuthService
}

// NewContainer 初始化容器（使用全局数据库连接）
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue, &cfg.Postback.ForwardRetry)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	return NewContainerWithDB(cfg, models.DB, queueClient, events.NewPublisher(&cfg.Events.Kafka))
}

// NewContainerWithDB 使用指定数据库连接初始化容器
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, queueClient *queue.Client, publisher events.Publisher) *Container {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := &Container{
		Config:          cfg,
		DB:              db,
		QueueClient:     queueClient,
		Publisher:       publisher,
		MetricsRegistry: registry,
		Metrics:         metrics.NewPostbackMetrics(registry),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			logger.Warnw("provider_close_publisher_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

func (c *Container) initRepositories() {
	db := c.DB
	c.RegistryRepo = repository.NewPostbackRegistryRepository(db)
	c.LedgerRepo = repository.NewLedgerRepository(db)
	c.PostbackLogRepo = repository.NewPostbackLogRepository(db)
	c.ReceiptRepo = repository.NewPostbackReceiptRepository(db)
}

func (c *Container) initServices() {
	postbackCfg := c.Config.Postback
	postbackCfg.Normalize()

	var cacheTTL time.Duration
	if c.Config.Redis.Enabled {
		cacheTTL = time.Duration(postbackCfg.RegistryCacheSeconds) * time.Second
	}
	c.RegistryLoader = service.NewRegistryLoader(c.RegistryRepo, cacheTTL)
	c.IdentityResolver = service.NewIdentityResolver(c.LedgerRepo)
	c.AuditService = service.NewAuditService(c.PostbackLogRepo, c.Metrics, postbackCfg.ResponseBodyLimit)
	c.SettlementService = service.NewSettlementService(c.LedgerRepo, c.ReceiptRepo, postbackCfg.DedupeEnabled)

	var retry service.ForwardRetryEnqueuer
	retryEnabled := postbackCfg.ForwardRetry.Enabled && c.QueueClient.Enabled()
	if retryEnabled {
		retry = c.QueueClient
	} else if postbackCfg.ForwardRetry.Enabled {
		logger.Warnw("provider_forward_retry_disabled_queue_unavailable")
	}
	c.ForwarderService = service.NewForwarderService(service.ForwarderOptions{
		Timeout:      time.Duration(postbackCfg.ForwardTimeoutSeconds) * time.Second,
		BodyLimit:    postbackCfg.ResponseBodyLimit,
		RetryEnabled: retryEnabled,
	}, c.AuditService, retry, c.RegistryLoader, c.Metrics)

	c.PostbackService = service.NewPostbackService(
		c.RegistryLoader,
		c.IdentityResolver,
		c.SettlementService,
		c.ForwarderService,
		c.AuditService,
		c.Publisher,
		c.Metrics,
	)
	c.OperatorAuthService = service.NewOperatorAuthService(c.Config.Security.OperatorJWT)
}
