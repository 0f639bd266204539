package repository

import (
	"strings"

	"github.com/postback-relay/internal/models"

	"gorm.io/gorm"
)

// PostbackLogRepository 回调审计日志数据访问接口
type PostbackLogRepository interface {
	Create(log *models.PostbackLog) error
	ListAdmin(filter PostbackLogListFilter) ([]models.PostbackLog, int64, error)
}

// GormPostbackLogRepository GORM 实现
type GormPostbackLogRepository struct {
	db *gorm.DB
}

// NewPostbackLogRepository 创建审计日志仓储
func NewPostbackLogRepository(db *gorm.DB) *GormPostbackLogRepository {
	return &GormPostbackLogRepository{db: db}
}

// Create 追加审计日志
func (r *GormPostbackLogRepository) Create(log *models.PostbackLog) error {
	return r.db.Create(log).Error
}

// ListAdmin 运维侧分页查询审计日志
func (r *GormPostbackLogRepository) ListAdmin(filter PostbackLogListFilter) ([]models.PostbackLog, int64, error) {
	query := r.db.Model(&models.PostbackLog{})
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.ProviderCode != "" {
		query = query.Where("provider_code = ?", filter.ProviderCode)
	}
	if filter.PartnerID != 0 {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if filter.TxnID != "" {
		query = query.Where("txn_id = ?", filter.TxnID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.Username); keyword != "" {
		query = query.Where("username "+likeOperator(r.db)+" ?", "%"+keyword+"%")
	}
	if key := strings.TrimSpace(filter.RawKey); key != "" {
		expr, err := jsonTextExpr(r.db, "raw_params", key)
		if err != nil {
			return nil, 0, err
		}
		if value := strings.TrimSpace(filter.RawValue); value != "" {
			query = query.Where(expr+" = ?", value)
		} else {
			query = query.Where(expr + " IS NOT NULL")
		}
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.PostbackLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
