package models

import "time"

// EarningRecord 收益流水（只追加）
type EarningRecord struct {
	ID           uint      `gorm:"primarykey" json:"id"`                              // 主键
	ProfileID    string    `gorm:"type:varchar(36);not null;index" json:"profile_id"` // 档案ID
	Amount       Money     `gorm:"type:decimal(20,2);not null" json:"amount"`         // 变动金额（冲正为负数）
	Unit         string    `gorm:"type:varchar(20);not null" json:"unit"`             // 单位 points/cash
	Description  string    `gorm:"type:varchar(255)" json:"description"`              // 描述
	Status       string    `gorm:"type:varchar(20);not null;index" json:"status"`     // 状态 approved/reversed
	ProviderCode string    `gorm:"type:varchar(64);index" json:"provider_code"`       // 来源编码
	TxnID        string    `gorm:"type:varchar(128);index" json:"txn_id"`             // 上游交易号
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                           // 创建时间
}

// TableName 指定表名
func (EarningRecord) TableName() string {
	return "earning_records"
}
