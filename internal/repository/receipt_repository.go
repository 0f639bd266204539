package repository

import (
	"github.com/postback-relay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostbackReceiptRepository 回调幂等回执数据访问接口
type PostbackReceiptRepository interface {
	WithTx(tx *gorm.DB) PostbackReceiptRepository
	CreateIfAbsent(receipt *models.PostbackReceipt) (bool, error)
	Count(providerCode, txnID string) (int64, error)
}

// GormPostbackReceiptRepository GORM 实现
type GormPostbackReceiptRepository struct {
	db *gorm.DB
}

// NewPostbackReceiptRepository 创建回执仓储
func NewPostbackReceiptRepository(db *gorm.DB) *GormPostbackReceiptRepository {
	return &GormPostbackReceiptRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPostbackReceiptRepository) WithTx(tx *gorm.DB) PostbackReceiptRepository {
	if tx == nil {
		return r
	}
	return &GormPostbackReceiptRepository{db: tx}
}

// CreateIfAbsent 写入回执，唯一键冲突时不写入并返回 false
func (r *GormPostbackReceiptRepository) CreateIfAbsent(receipt *models.PostbackReceipt) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(receipt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Count 统计指定交易号的回执数量
func (r *GormPostbackReceiptRepository) Count(providerCode, txnID string) (int64, error) {
	var total int64
	err := r.db.Model(&models.PostbackReceipt{}).
		Where("provider_code = ? AND txn_id = ?", providerCode, txnID).
		Count(&total).Error
	return total, err
}
