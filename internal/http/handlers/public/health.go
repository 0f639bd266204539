package public

import (
	"context"
	"net/http"
	"time"

	"github.com/postback-relay/internal/cache"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Healthz 健康检查：数据库必须可用，Redis 启用时一并检查
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{}
	healthy := true
	if h.DB == nil {
		checks["database"] = "unavailable"
		healthy = false
	} else if sqlDB, err := h.DB.DB(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}
	if cache.Enabled() {
		if err := cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
