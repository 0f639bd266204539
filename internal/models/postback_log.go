package models

import "time"

// PostbackLog 回调审计日志（入站与出站各一条，只追加）
type PostbackLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                // 主键
	Direction    string    `gorm:"type:varchar(16);not null;index" json:"direction"`    // 方向 incoming/outgoing
	ProviderCode string    `gorm:"type:varchar(64);index" json:"provider_code"`         // 来源编码
	PartnerID    *uint     `gorm:"index" json:"partner_id,omitempty"`                   // 下游合作方ID
	PartnerName  string    `gorm:"type:varchar(128)" json:"partner_name"`               // 下游合作方名称
	ProfileID    string    `gorm:"type:varchar(36);index" json:"profile_id"`            // 档案ID
	Username     string    `gorm:"type:varchar(128);index" json:"username"`             // 用户名
	TxnID        string    `gorm:"type:varchar(128);index" json:"txn_id"`               // 上游交易号
	Status       string    `gorm:"type:varchar(20);index" json:"status"`                // 归一化状态
	Payout       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"payout"` // 奖励
	RawParams    JSON      `gorm:"type:json" json:"raw_params"`                         // 原始参数
	TargetURL    string    `gorm:"type:text" json:"target_url"`                         // 出站地址
	Method       string    `gorm:"type:varchar(10)" json:"method"`                      // 出站方法
	ResponseCode int       `json:"response_code"`                                       // 出站响应码
	ResponseBody string    `gorm:"type:text" json:"response_body"`                      // 出站响应片段
	ErrorMessage string    `gorm:"type:text" json:"error_message"`                      // 错误信息
	RequestID    string    `gorm:"type:varchar(64);index" json:"request_id"`            // 请求ID
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                             // 创建时间
}

// TableName 指定表名
func (PostbackLog) TableName() string {
	return "postback_logs"
}
