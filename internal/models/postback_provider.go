package models

import "time"

// PostbackProvider 上游回调提供方（积分墙 / 问卷平台）
type PostbackProvider struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                                                         // 主键
	Kind              string    `gorm:"type:varchar(20);not null;default:'offerwall';uniqueIndex:idx_provider_kind_code" json:"kind"` // 类型 offerwall/survey
	Code              string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_provider_kind_code" json:"code"`                     // 回调路由编码
	Name              string    `gorm:"type:varchar(128);not null;default:''" json:"name"`                                            // 名称
	UsernameKey       string    `gorm:"type:varchar(64);not null" json:"username_key"`                                                // 用户名参数名
	StatusKey         string    `gorm:"type:varchar(64);not null" json:"status_key"`                                                  // 状态参数名
	PayoutKey         string    `gorm:"type:varchar(64);not null" json:"payout_key"`                                                  // 奖励参数名
	TxnKey            string    `gorm:"type:varchar(64);not null;default:''" json:"txn_key"`                                          // 交易号参数名
	OfferKey          string    `gorm:"type:varchar(64);not null;default:''" json:"offer_key"`                                        // 任务编号参数名（可选）
	SuccessValue      string    `gorm:"type:varchar(64);not null;default:''" json:"success_value"`                                    // 成功状态字面值
	PayoutUnit        string    `gorm:"type:varchar(20);not null;default:'points'" json:"payout_unit"`                                // 奖励单位 points/cash
	Percentage        Money     `gorm:"type:decimal(10,2);not null;default:100" json:"percentage"`                                    // 换算比例（百分比）
	AllowDuplicateTxn bool      `gorm:"not null;default:false" json:"allow_duplicate_txn"`                                            // 是否允许重复交易号
	IsActive          bool      `gorm:"not null;index" json:"is_active"`                                                              // 是否启用
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                                                                      // 创建时间
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"`                                                                      // 更新时间
}

// TableName 指定表名
func (PostbackProvider) TableName() string {
	return "postback_providers"
}
