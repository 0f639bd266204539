package cache

import (
	"context"
	"time"

	"github.com/postback-relay/internal/models"
)

const registryStateKey = "postback:registry"

// RegistryState 上游提供方与下游合作方配置快照
// 仅用于服务端 Redis 缓存，配置由运维在库中维护
type RegistryState struct {
	Providers []models.PostbackProvider  `json:"providers"`
	Partners  []models.DownstreamPartner `json:"partners"`
	LoadedAt  int64                      `json:"loaded_at"`
}

// BuildRegistryState 构建配置快照
func BuildRegistryState(providers []models.PostbackProvider, partners []models.DownstreamPartner) *RegistryState {
	return &RegistryState{
		Providers: providers,
		Partners:  partners,
		LoadedAt:  time.Now().Unix(),
	}
}

// GetRegistryState 获取配置快照
func GetRegistryState(ctx context.Context) (*RegistryState, bool, error) {
	var state RegistryState
	hit, err := getJSON(ctx, registryStateKey, &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetRegistryState 写入配置快照，ttl 非正数时不缓存
func SetRegistryState(ctx context.Context, state *RegistryState, ttl time.Duration) error {
	if state == nil || ttl <= 0 {
		return nil
	}
	return setJSON(ctx, registryStateKey, state, ttl)
}

// DelRegistryState 删除配置快照
func DelRegistryState(ctx context.Context) error {
	return del(ctx, registryStateKey)
}
