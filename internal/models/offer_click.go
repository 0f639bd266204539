package models

import "time"

// OfferClick 任务点击记录（由点击追踪写入，本服务只更新完成状态）
type OfferClick struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                                                      // 主键
	ProfileID        string    `gorm:"type:varchar(36);not null;index:idx_offer_click_profile_time,priority:1" json:"profile_id"` // 档案ID
	OfferID          string    `gorm:"type:varchar(128)" json:"offer_id"`                                                         // 任务ID
	ProviderCode     string    `gorm:"type:varchar(64)" json:"provider_code"`                                                     // 来源编码
	CompletionStatus string    `gorm:"type:varchar(20);not null;default:'clicked';index" json:"completion_status"`                // 完成状态
	ClickedAt        time.Time `gorm:"not null;index:idx_offer_click_profile_time,priority:2" json:"clicked_at"`                  // 点击时间
	UpdatedAt        time.Time `json:"updated_at"`                                                                                // 更新时间
}

// TableName 指定表名
func (OfferClick) TableName() string {
	return "offer_clicks"
}
