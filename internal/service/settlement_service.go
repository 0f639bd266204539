package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementService 结算处理：变更余额、追加收益流水、更新最近点击
type SettlementService struct {
	ledgerRepo    repository.LedgerRepository
	receiptRepo   repository.PostbackReceiptRepository
	dedupeEnabled bool
}

// SettlementResult 结算结果
type SettlementResult struct {
	Applied       bool
	Unit          string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Earning       *models.EarningRecord
	ClickUpdated  bool
}

// NewSettlementService 创建结算服务
func NewSettlementService(ledgerRepo repository.LedgerRepository, receiptRepo repository.PostbackReceiptRepository, dedupeEnabled bool) *SettlementService {
	return &SettlementService{
		ledgerRepo:    ledgerRepo,
		receiptRepo:   receiptRepo,
		dedupeEnabled: dedupeEnabled,
	}
}

// Settle 在单个事务内应用归一化事件
// 失败状态或奖励不为正数时不做任何变更；重复回调返回 ErrDuplicatePostback
// 事务运行在与入站请求解耦的上下文上，客户端断开不会中断结算
func (s *SettlementService) Settle(ctx context.Context, provider *models.PostbackProvider, profile *models.LedgerProfile, event CanonicalEvent) (*SettlementResult, error) {
	result := &SettlementResult{Unit: NormalizePayoutUnit(event.Unit), Amount: event.Payout}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	if !isSettleable(event) {
		return result, nil
	}
	detached := context.WithoutCancel(ctx)
	ledger := s.ledgerRepo.WithContext(detached)

	err := ledger.Transaction(func(tx *gorm.DB) error {
		if s.shouldDedupe(provider, event) {
			created, err := s.receiptRepo.WithTx(tx).CreateIfAbsent(&models.PostbackReceipt{
				ProviderCode: event.ProviderCode,
				TxnID:        event.TxnID,
				Status:       event.Status,
				ProfileID:    profile.ID,
			})
			if err != nil {
				return err
			}
			if !created {
				return ErrDuplicatePostback
			}
		}

		repo := ledger.WithTx(tx)
		locked, err := repo.GetProfileByIDForUpdate(profile.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return gorm.ErrRecordNotFound
		}
		result.BalanceBefore = balanceOf(locked, result.Unit)

		earning := &models.EarningRecord{
			ProfileID:    profile.ID,
			Unit:         result.Unit,
			ProviderCode: event.ProviderCode,
			TxnID:        event.TxnID,
		}
		var clickFrom, clickTo string
		switch event.Status {
		case constants.PostbackStatusSuccess:
			if err := repo.IncreaseBalance(profile.ID, result.Unit, event.Payout); err != nil {
				return err
			}
			earning.Amount = models.NewMoneyFromDecimal(event.Payout)
			earning.Status = constants.EarningStatusApproved
			earning.Description = buildEarningDescription(provider, event, "completed")
			clickFrom, clickTo = constants.ClickStatusClicked, constants.ClickStatusCompleted
		case constants.PostbackStatusReversed:
			if err := repo.DecreaseBalanceClamped(profile.ID, result.Unit, event.Payout); err != nil {
				return err
			}
			earning.Amount = models.NewMoneyFromDecimal(event.Payout.Neg())
			earning.Status = constants.EarningStatusReversed
			earning.Description = buildEarningDescription(provider, event, "reversed")
			clickFrom, clickTo = "", constants.ClickStatusReversed
		}

		if err := repo.CreateEarning(earning); err != nil {
			return err
		}
		updated, err := repo.UpdateLatestClickStatus(profile.ID, clickFrom, clickTo)
		if err != nil {
			return err
		}
		after, err := repo.GetProfileByIDForUpdate(profile.ID)
		if err != nil {
			return err
		}
		if after != nil {
			result.BalanceAfter = balanceOf(after, result.Unit)
		}
		result.Earning = earning
		result.ClickUpdated = updated
		result.Applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePostback) {
			return result, ErrDuplicatePostback
		}
		logger.Errorw("postback_settlement_failed",
			"provider_code", event.ProviderCode,
			"profile_id", profile.ID,
			"txn_id", event.TxnID,
			"status", event.Status,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSettlementWriteFailed, err)
	}
	return result, nil
}

func (s *SettlementService) shouldDedupe(provider *models.PostbackProvider, event CanonicalEvent) bool {
	if !s.dedupeEnabled || s.receiptRepo == nil {
		return false
	}
	if provider != nil && provider.AllowDuplicateTxn {
		return false
	}
	return strings.TrimSpace(event.TxnID) != ""
}

func isSettleable(event CanonicalEvent) bool {
	if !event.Payout.IsPositive() {
		return false
	}
	return event.Status == constants.PostbackStatusSuccess || event.Status == constants.PostbackStatusReversed
}

func balanceOf(profile *models.LedgerProfile, unit string) decimal.Decimal {
	if profile == nil {
		return decimal.Zero
	}
	if unit == constants.PayoutUnitCash {
		return profile.CashBalance.Decimal
	}
	return decimal.NewFromInt(profile.Points)
}

func buildEarningDescription(provider *models.PostbackProvider, event CanonicalEvent, action string) string {
	source := event.ProviderCode
	if provider != nil && strings.TrimSpace(provider.Name) != "" {
		source = strings.TrimSpace(provider.Name)
	}
	description := fmt.Sprintf("Offer %s via %s", action, source)
	if event.OfferID != "" {
		description = fmt.Sprintf("%s (offer %s)", description, event.OfferID)
	}
	return description
}
