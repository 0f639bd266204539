package service

import (
	"context"
	"strings"

	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/repository"

	"github.com/google/uuid"
)

// IdentityResolver 将回调中的用户标识解析为账本档案
type IdentityResolver struct {
	ledgerRepo repository.LedgerRepository
}

// NewIdentityResolver 创建解析器
func NewIdentityResolver(ledgerRepo repository.LedgerRepository) *IdentityResolver {
	return &IdentityResolver{ledgerRepo: ledgerRepo}
}

// Resolve 先按用户名精确匹配；仅当标识是 UUID 时再按档案ID或认证用户ID匹配
func (r *IdentityResolver) Resolve(ctx context.Context, identifier string) (*models.LedgerProfile, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, ErrUserNotFound
	}
	repo := r.ledgerRepo.WithContext(ctx)
	profile, err := repo.GetProfileByUsername(identifier)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	if _, err := uuid.Parse(identifier); err != nil || len(identifier) != 36 {
		return nil, ErrUserNotFound
	}
	profile, err = repo.GetProfileByIdentity(identifier)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	return profile, nil
}
