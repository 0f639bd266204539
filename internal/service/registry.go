package service

import (
	"context"
	"fmt"
	"time"

	"github.com/postback-relay/internal/cache"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/repository"
)

// RegistrySnapshot 单次请求使用的只读配置快照
type RegistrySnapshot struct {
	Providers []models.PostbackProvider
	Partners  []models.DownstreamPartner
}

// NewRegistrySnapshot 创建配置快照
func NewRegistrySnapshot(providers []models.PostbackProvider, partners []models.DownstreamPartner) *RegistrySnapshot {
	return &RegistrySnapshot{Providers: providers, Partners: partners}
}

// ActivePartners 返回启用的下游合作方
func (s *RegistrySnapshot) ActivePartners() []models.DownstreamPartner {
	if s == nil {
		return nil
	}
	active := make([]models.DownstreamPartner, 0, len(s.Partners))
	for _, partner := range s.Partners {
		if partner.IsActive {
			active = append(active, partner)
		}
	}
	return active
}

// RegistrySource 配置快照来源
type RegistrySource interface {
	Load(ctx context.Context) (*RegistrySnapshot, error)
}

// StaticRegistry 固定配置快照
type StaticRegistry struct {
	Snapshot *RegistrySnapshot
}

// Load 返回固定快照
func (s StaticRegistry) Load(context.Context) (*RegistrySnapshot, error) {
	if s.Snapshot == nil {
		return &RegistrySnapshot{}, nil
	}
	return s.Snapshot, nil
}

// RegistryLoader 从数据库加载配置快照，可选 Redis 缓存
type RegistryLoader struct {
	repo     repository.PostbackRegistryRepository
	cacheTTL time.Duration
}

// NewRegistryLoader 创建配置加载器，cacheTTL 非正数时不缓存
func NewRegistryLoader(repo repository.PostbackRegistryRepository, cacheTTL time.Duration) *RegistryLoader {
	return &RegistryLoader{repo: repo, cacheTTL: cacheTTL}
}

// Load 加载配置快照，优先读取缓存
func (l *RegistryLoader) Load(ctx context.Context) (*RegistrySnapshot, error) {
	if l == nil {
		return nil, ErrRegistryLoadFailed
	}
	if l.cacheTTL > 0 {
		state, hit, err := cache.GetRegistryState(ctx)
		if err != nil {
			logger.Warnw("postback_registry_cache_get_failed", "error", err)
		}
		if hit && state != nil {
			return NewRegistrySnapshot(state.Providers, state.Partners), nil
		}
	}
	return l.Refresh(ctx)
}

// Refresh 从数据库重新加载并回写缓存
func (l *RegistryLoader) Refresh(ctx context.Context) (*RegistrySnapshot, error) {
	if l == nil || l.repo == nil {
		return nil, ErrRegistryLoadFailed
	}
	providers, err := l.repo.ListActiveProviders()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryLoadFailed, err)
	}
	partners, err := l.repo.ListActivePartners()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryLoadFailed, err)
	}
	if l.cacheTTL > 0 {
		state := cache.BuildRegistryState(providers, partners)
		if err := cache.SetRegistryState(ctx, state, l.cacheTTL); err != nil {
			logger.Warnw("postback_registry_cache_set_failed", "error", err)
		}
	}
	return NewRegistrySnapshot(providers, partners), nil
}

// GetPartner 按ID读取合作方（测试发送用，不经过缓存）
func (l *RegistryLoader) GetPartner(id uint) (*models.DownstreamPartner, error) {
	if l == nil || l.repo == nil {
		return nil, ErrRegistryLoadFailed
	}
	return l.repo.GetPartnerByID(id)
}
