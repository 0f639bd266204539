package service

import (
	"strings"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/models"

	"github.com/shopspring/decimal"
)

// CanonicalEvent 归一化后的回调事件
type CanonicalEvent struct {
	Username     string
	Status       string
	Payout       decimal.Decimal
	TxnID        string
	ProviderCode string
	OfferID      string
	RawStatus    string
	Unit         string
}

var successFallbackValues = map[string]struct{}{
	"1": {}, "2": {}, "success": {}, "approved": {}, "complete": {},
	"completed": {}, "true": {}, "yes": {}, "ok": {}, "done": {},
}

var reversalValues = map[string]struct{}{
	"reversed": {}, "reversal": {}, "-1": {}, "3": {},
	"chargeback": {}, "refund": {}, "refunded": {},
}

// 同一编码下的类型优先级，数值越小越优先
var providerKindPriority = map[string]int{
	constants.ProviderKindOfferwall: 0,
	constants.ProviderKindSurvey:    1,
}

var hundred = decimal.NewFromInt(100)

// ResolveProvider 在快照中查找启用的上游提供方；同编码存在多种类型时积分墙优先
func ResolveProvider(snapshot *RegistrySnapshot, code string) (*models.PostbackProvider, error) {
	code = strings.TrimSpace(code)
	if snapshot == nil || code == "" {
		return nil, ErrUnknownProvider
	}
	var matched *models.PostbackProvider
	for i := range snapshot.Providers {
		candidate := &snapshot.Providers[i]
		if !candidate.IsActive || candidate.Code != code {
			continue
		}
		if matched == nil || kindPriority(candidate.Kind) < kindPriority(matched.Kind) {
			matched = candidate
		}
	}
	if matched == nil {
		return nil, ErrUnknownProvider
	}
	return matched, nil
}

func kindPriority(kind string) int {
	if priority, ok := providerKindPriority[strings.ToLower(strings.TrimSpace(kind))]; ok {
		return priority
	}
	return len(providerKindPriority)
}

// NormalizeStatus 归一化状态：成功集合优先于冲正集合，其余均视为失败
// successValue 支持逗号分隔的多个字面值
func NormalizeStatus(raw, successValue string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, literal := range strings.Split(successValue, ",") {
		literal = strings.ToLower(strings.TrimSpace(literal))
		if literal != "" && literal == value {
			return constants.PostbackStatusSuccess
		}
	}
	if _, ok := successFallbackValues[value]; ok {
		return constants.PostbackStatusSuccess
	}
	if _, ok := reversalValues[value]; ok {
		return constants.PostbackStatusReversed
	}
	return constants.PostbackStatusFailed
}

// ComputePayout 解析奖励并按百分比换算，四舍五入到整数；解析失败按 0 处理
func ComputePayout(raw string, percentage decimal.Decimal) decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return amount.Mul(percentage).Div(hundred).Round(0)
}

// NormalizePayoutUnit 非 cash 一律按积分处理
func NormalizePayoutUnit(unit string) string {
	if strings.EqualFold(strings.TrimSpace(unit), constants.PayoutUnitCash) {
		return constants.PayoutUnitCash
	}
	return constants.PayoutUnitPoints
}

// Normalize 按提供方字段映射生成归一化事件（纯函数）
func Normalize(provider *models.PostbackProvider, params PostbackParams) CanonicalEvent {
	if provider == nil {
		return CanonicalEvent{Status: constants.PostbackStatusFailed, Payout: decimal.Zero}
	}
	rawStatus := params.Get(provider.StatusKey)
	return CanonicalEvent{
		Username:     params.Get(provider.UsernameKey),
		Status:       NormalizeStatus(rawStatus, provider.SuccessValue),
		Payout:       ComputePayout(params.Get(provider.PayoutKey), provider.Percentage.Decimal),
		TxnID:        params.Get(provider.TxnKey),
		ProviderCode: provider.Code,
		OfferID:      params.Get(provider.OfferKey),
		RawStatus:    rawStatus,
		Unit:         NormalizePayoutUnit(provider.PayoutUnit),
	}
}
