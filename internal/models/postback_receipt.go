package models

import "time"

// PostbackReceipt 回调幂等回执，(provider_code, txn_id, status) 唯一
type PostbackReceipt struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                                                           // 主键
	ProviderCode string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_postback_receipt_key,priority:1" json:"provider_code"` // 来源编码
	TxnID        string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_postback_receipt_key,priority:2" json:"txn_id"`       // 上游交易号
	Status       string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_postback_receipt_key,priority:3" json:"status"`        // 归一化状态
	ProfileID    string    `gorm:"type:varchar(36);index" json:"profile_id"`                                                       // 档案ID
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                                                        // 创建时间
}

// TableName 指定表名
func (PostbackReceipt) TableName() string {
	return "postback_receipts"
}
