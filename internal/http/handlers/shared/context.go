package shared

import "github.com/gin-gonic/gin"

const (
	// ContextKeyRequestID 请求ID上下文键
	ContextKeyRequestID = "request_id"
	// ContextKeyOperator 运维操作人上下文键
	ContextKeyOperator = "operator"
)

// GetContextString 从上下文读取字符串值，不存在或类型不符时返回空串。
func GetContextString(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	value, exists := c.Get(key)
	if !exists {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// RequestID 当前请求ID
func RequestID(c *gin.Context) string {
	return GetContextString(c, ContextKeyRequestID)
}

// Operator 当前运维操作人
func Operator(c *gin.Context) string {
	return GetContextString(c, ContextKeyOperator)
}
