package router

import (
	"fmt"
	"strings"

	"github.com/postback-relay/internal/cache"
	"github.com/postback-relay/internal/config"
	adminhandlers "github.com/postback-relay/internal/http/handlers/admin"
	publichandlers "github.com/postback-relay/internal/http/handlers/public"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pbr"
	}
	postbackRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:postback", redisPrefix),
		WindowSeconds: cfg.Security.PostbackRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PostbackRateLimit.MaxRequests,
		OnLimited:     publicHandler.RejectRateLimitedPostback,
	}
	postbackLimiter := RateLimitMiddleware(cache.Client(), postbackRule, KeyByProviderAndIP)

	// 中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", publicHandler.Healthz)
	if cfg.Metrics.Enabled && c.MetricsRegistry != nil {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(c.MetricsRegistry, promhttp.HandlerOpts{Registry: c.MetricsRegistry})))
	}

	// 上游回调：保留无前缀路径兼容已配置的上游地址
	r.GET("/receive-postback/:code", postbackLimiter, publicHandler.ReceivePostback)
	r.POST("/receive-postback/:code", postbackLimiter, publicHandler.ReceivePostback)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/receive-postback/:code", postbackLimiter, publicHandler.ReceivePostback)
		apiV1.POST("/receive-postback/:code", postbackLimiter, publicHandler.ReceivePostback)

		// 运维接口
		admin := apiV1.Group("/admin")
		admin.Use(OperatorJWTMiddleware(c.OperatorAuthService, cfg.Security.OperatorJWT.SecretKey))
		{
			admin.POST("/send-test-postback", adminHandler.SendTestPostback)
			admin.GET("/postback-logs", adminHandler.ListPostbackLogs)
		}
	}

	return r
}
