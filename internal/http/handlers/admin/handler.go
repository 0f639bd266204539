package admin

import "github.com/postback-relay/internal/provider"

// Handler 运维接口处理器入口
// 说明：该处理器仅用于需要运维 Token 的接口。
type Handler struct {
	*provider.Container
}

// New 创建运维处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
