package events

import "time"

// SettlementEvent 结算完成事件
type SettlementEvent struct {
	ProviderCode string    `json:"provider_code"`
	ProfileID    string    `json:"profile_id"`
	Username     string    `json:"username"`
	TxnID        string    `json:"txn_id"`
	OfferID      string    `json:"offer_id,omitempty"`
	Status       string    `json:"status"`
	Unit         string    `json:"unit"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	RequestID    string    `json:"request_id,omitempty"`
	SettledAt    time.Time `json:"settled_at"`
}
