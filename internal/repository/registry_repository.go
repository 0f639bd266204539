package repository

import (
	"errors"

	"github.com/postback-relay/internal/models"

	"gorm.io/gorm"
)

// PostbackRegistryRepository 上游提供方与下游合作方配置读取接口（只读）
type PostbackRegistryRepository interface {
	ListActiveProviders() ([]models.PostbackProvider, error)
	ListActivePartners() ([]models.DownstreamPartner, error)
	GetPartnerByID(id uint) (*models.DownstreamPartner, error)
}

// GormPostbackRegistryRepository GORM 实现
type GormPostbackRegistryRepository struct {
	db *gorm.DB
}

// NewPostbackRegistryRepository 创建配置仓储
func NewPostbackRegistryRepository(db *gorm.DB) *GormPostbackRegistryRepository {
	return &GormPostbackRegistryRepository{db: db}
}

// ListActiveProviders 获取全部启用的上游提供方
func (r *GormPostbackRegistryRepository) ListActiveProviders() ([]models.PostbackProvider, error) {
	var providers []models.PostbackProvider
	if err := r.db.Where("is_active = ?", true).Order("id asc").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

// ListActivePartners 获取全部启用的下游合作方
func (r *GormPostbackRegistryRepository) ListActivePartners() ([]models.DownstreamPartner, error) {
	var partners []models.DownstreamPartner
	if err := r.db.Where("is_active = ?", true).Order("id asc").Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

// GetPartnerByID 按ID获取下游合作方（不区分启用状态）
func (r *GormPostbackRegistryRepository) GetPartnerByID(id uint) (*models.DownstreamPartner, error) {
	if id == 0 {
		return nil, nil
	}
	var partner models.DownstreamPartner
	if err := r.db.First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}
