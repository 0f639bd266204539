package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerProfile 用户账本档案（积分与现金余额）
type LedgerProfile struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`                     // 档案ID（UUID）
	AuthUserID  string    `gorm:"type:varchar(36);index" json:"auth_user_id"`                // 认证系统用户ID（UUID）
	Username    string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"username"`    // 用户名
	Points      int64     `gorm:"not null;default:0" json:"points"`                          // 积分余额
	CashBalance Money     `gorm:"type:decimal(20,2);not null;default:0" json:"cash_balance"` // 现金余额
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                                   // 更新时间
}

// TableName 指定表名
func (LedgerProfile) TableName() string {
	return "ledger_profiles"
}

// BeforeCreate 未指定 ID 时生成 UUID
func (p *LedgerProfile) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
