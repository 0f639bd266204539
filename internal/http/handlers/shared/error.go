package shared

import (
	"github.com/postback-relay/internal/http/response"
	"github.com/postback-relay/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if id := RequestID(c); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

// RespondError 返回统一错误响应；err 只进日志，不回显给调用方。
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		log := RequestLog(c).With("code", code, "message", msg, "route", c.FullPath())
		if code >= response.CodeInternal {
			log.Errorw("handler_error", "error", err)
		} else {
			log.Warnw("handler_rejected", "error", err)
		}
	}
	response.Error(c, code, msg)
}
