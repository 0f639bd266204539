package models

import "time"

// DownstreamPartner 下游转发合作方
type DownstreamPartner struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                       // 主键
	Name          string    `gorm:"type:varchar(128);not null" json:"name"`                     // 名称
	URL           string    `gorm:"type:varchar(1024);not null" json:"url"`                     // 目标地址
	UsernameParam string    `gorm:"type:varchar(64);not null;default:''" json:"username_param"` // 用户名参数名
	StatusParam   string    `gorm:"type:varchar(64);not null;default:''" json:"status_param"`   // 状态参数名
	PayoutParam   string    `gorm:"type:varchar(64);not null;default:''" json:"payout_param"`   // 奖励参数名
	TxnParam      string    `gorm:"type:varchar(64);not null;default:''" json:"txn_param"`      // 交易号参数名
	OfferParam    string    `gorm:"type:varchar(64);not null;default:''" json:"offer_param"`    // 来源编码参数名
	Method        string    `gorm:"type:varchar(10);not null;default:'GET'" json:"method"`      // 请求方法
	ExtraParams   StringMap `gorm:"type:json" json:"extra_params"`                              // 附加静态参数
	IsActive      bool      `gorm:"not null;index" json:"is_active"`                            // 是否启用
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (DownstreamPartner) TableName() string {
	return "downstream_partners"
}
