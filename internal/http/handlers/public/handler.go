package public

import "github.com/postback-relay/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器用于上游回调与健康检查，不做鉴权。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
