package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository 账本数据访问接口
type LedgerRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) LedgerRepository
	WithContext(ctx context.Context) LedgerRepository

	GetProfileByUsername(username string) (*models.LedgerProfile, error)
	GetProfileByIdentity(identity string) (*models.LedgerProfile, error)
	GetProfileByIDForUpdate(id string) (*models.LedgerProfile, error)
	IncreaseBalance(profileID, unit string, amount decimal.Decimal) error
	DecreaseBalanceClamped(profileID, unit string, amount decimal.Decimal) error
	CreateEarning(record *models.EarningRecord) error
	ListEarningsByProfile(profileID string) ([]models.EarningRecord, error)
	UpdateLatestClickStatus(profileID, fromStatus, toStatus string) (bool, error)
}

// ErrUnsupportedPayoutUnit 未知奖励单位
var ErrUnsupportedPayoutUnit = errors.New("unsupported payout unit")

// GormLedgerRepository GORM 账本仓储实现
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建账本仓储
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Transaction 执行事务
func (r *GormLedgerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// WithContext 绑定上下文
func (r *GormLedgerRepository) WithContext(ctx context.Context) LedgerRepository {
	if ctx == nil {
		return r
	}
	return &GormLedgerRepository{db: r.db.WithContext(ctx)}
}

// GetProfileByUsername 按用户名精确查询
func (r *GormLedgerRepository) GetProfileByUsername(username string) (*models.LedgerProfile, error) {
	if username == "" {
		return nil, nil
	}
	var profile models.LedgerProfile
	if err := r.db.Where("username = ?", username).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfileByIdentity 按档案ID或认证用户ID查询
func (r *GormLedgerRepository) GetProfileByIdentity(identity string) (*models.LedgerProfile, error) {
	if identity == "" {
		return nil, nil
	}
	var profile models.LedgerProfile
	if err := r.db.Where("id = ? OR auth_user_id = ?", identity, identity).
		Order("created_at asc").
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfileByIDForUpdate 加锁获取账本档案（sqlite 忽略锁子句）
func (r *GormLedgerRepository) GetProfileByIDForUpdate(id string) (*models.LedgerProfile, error) {
	if id == "" {
		return nil, nil
	}
	var profile models.LedgerProfile
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// IncreaseBalance 原子增加余额
func (r *GormLedgerRepository) IncreaseBalance(profileID, unit string, amount decimal.Decimal) error {
	column, arg, err := balanceColumnArg(unit, amount)
	if err != nil {
		return err
	}
	expr := gorm.Expr(fmt.Sprintf("%s + ?", column), arg)
	return r.updateBalance(profileID, column, expr)
}

// DecreaseBalanceClamped 原子扣减余额，最低扣至 0
func (r *GormLedgerRepository) DecreaseBalanceClamped(profileID, unit string, amount decimal.Decimal) error {
	column, arg, err := balanceColumnArg(unit, amount)
	if err != nil {
		return err
	}
	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %s - ? < 0 THEN 0 ELSE %s - ? END", column, column), arg, arg)
	return r.updateBalance(profileID, column, expr)
}

func (r *GormLedgerRepository) updateBalance(profileID, column string, expr clause.Expr) error {
	if profileID == "" {
		return errors.New("profile id is empty")
	}
	result := r.db.Model(&models.LedgerProfile{}).
		Where("id = ?", profileID).
		Update(column, expr)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// balanceColumnArg 按奖励单位返回余额列及 SQL 参数；积分列为整数，按整数传参
func balanceColumnArg(unit string, amount decimal.Decimal) (string, interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case constants.PayoutUnitPoints:
		return "points", amount.Round(0).IntPart(), nil
	case constants.PayoutUnitCash:
		return "cash_balance", amount.Round(2).StringFixed(2), nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedPayoutUnit, unit)
	}
}

// CreateEarning 追加收益流水
func (r *GormLedgerRepository) CreateEarning(record *models.EarningRecord) error {
	return r.db.Create(record).Error
}

// ListEarningsByProfile 按档案查询收益流水
func (r *GormLedgerRepository) ListEarningsByProfile(profileID string) ([]models.EarningRecord, error) {
	var records []models.EarningRecord
	if err := r.db.Where("profile_id = ?", profileID).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateLatestClickStatus 更新该档案最近一条点击记录的完成状态
// fromStatus 为空时不限制当前状态；返回是否命中记录
func (r *GormLedgerRepository) UpdateLatestClickStatus(profileID, fromStatus, toStatus string) (bool, error) {
	query := r.db.Model(&models.OfferClick{}).Where("profile_id = ?", profileID)
	if fromStatus != "" {
		query = query.Where("completion_status = ?", fromStatus)
	}
	var click models.OfferClick
	// Find 未命中不产生 ErrRecordNotFound 日志
	res := query.Order("clicked_at desc").Order("id desc").Limit(1).Find(&click)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := r.db.Model(&models.OfferClick{}).
		Where("id = ?", click.ID).
		Update("completion_status", toStatus).Error; err != nil {
		return false, err
	}
	return true, nil
}
