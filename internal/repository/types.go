package repository

import "time"

// PostbackLogListFilter 查询回调审计日志的过滤条件
type PostbackLogListFilter struct {
	Page         int
	PageSize     int
	Direction    string
	ProviderCode string
	PartnerID    uint
	TxnID        string
	Status       string
	Username     string
	RawKey       string
	RawValue     string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}
