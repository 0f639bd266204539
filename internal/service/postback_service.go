package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/events"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/metrics"
	"github.com/postback-relay/internal/models"

	"github.com/shopspring/decimal"
)

const rateLimitedReason = "rate limited"

// PostbackService 入站回调编排：归一化 → 用户解析 → 结算 → 转发 → 审计
type PostbackService struct {
	registry   RegistrySource
	resolver   *IdentityResolver
	settlement *SettlementService
	forwarder  *ForwarderService
	audit      *AuditService
	publisher  events.Publisher
	metrics    *metrics.PostbackMetrics
}

// ReceiveInput 入站回调输入
type ReceiveInput struct {
	ProviderCode string
	Params       PostbackParams
	RequestID    string
	// BodyError 请求体解析失败原因，仅用于审计
	BodyError error
}

// ReceiveResult 入站回调处理结果
type ReceiveResult struct {
	HTTPStatus       int
	Status           string
	NormalizedStatus string
	Payout           decimal.Decimal
	ForwardedTo      int
	Error            string
	Event            CanonicalEvent
	Settlement       *SettlementResult
	Forward          ForwardSummary
}

// NewPostbackService 创建回调编排服务
func NewPostbackService(
	registry RegistrySource,
	resolver *IdentityResolver,
	settlement *SettlementService,
	forwarder *ForwarderService,
	audit *AuditService,
	publisher events.Publisher,
	m *metrics.PostbackMetrics,
) *PostbackService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PostbackService{
		registry:   registry,
		resolver:   resolver,
		settlement: settlement,
		forwarder:  forwarder,
		audit:      audit,
		publisher:  publisher,
		metrics:    m,
	}
}

// Receive 处理一条入站回调
// 每个分支都会写入且只写入一条入站审计日志
// 未知提供方返回 ErrUnknownProvider；结算写入失败返回 ErrSettlementWriteFailed 且不再转发
func (s *PostbackService) Receive(ctx context.Context, input ReceiveInput) (*ReceiveResult, error) {
	started := time.Now()
	code := strings.TrimSpace(input.ProviderCode)
	if input.Params == nil {
		input.Params = PostbackParams{}
	}
	incoming := IncomingRecord{
		ProviderCode: code,
		Status:       constants.PostbackStatusFailed,
		Params:       input.Params,
		RequestID:    input.RequestID,
	}

	snapshot, err := s.registry.Load(ctx)
	if err != nil {
		incoming.ErrorMessage = err.Error()
		s.audit.RecordIncoming(incoming)
		s.metrics.RecordReceived(code, "registry_error", time.Since(started))
		return nil, err
	}

	provider, err := ResolveProvider(snapshot, code)
	if err != nil {
		incoming.ErrorMessage = joinErrors("unknown provider", input.BodyError)
		s.audit.RecordIncoming(incoming)
		s.metrics.RecordReceived(code, "unknown_provider", time.Since(started))
		logger.Warnw("postback_unknown_provider", "provider_code", code, "request_id", input.RequestID)
		return nil, err
	}

	event := Normalize(provider, input.Params)
	incoming.Username = event.Username
	incoming.TxnID = event.TxnID
	incoming.Status = event.Status
	incoming.Payout = event.Payout
	result := &ReceiveResult{
		HTTPStatus:       http.StatusOK,
		Status:           constants.ReceiveStatusOK,
		NormalizedStatus: event.Status,
		Payout:           event.Payout,
		Event:            event,
	}

	profile, err := s.resolver.Resolve(ctx, event.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			incoming.ErrorMessage = joinErrors("user not found", input.BodyError)
			s.audit.RecordIncoming(incoming)
			s.metrics.RecordReceived(code, "user_not_found", time.Since(started))
			logger.Warnw("postback_user_not_found",
				"provider_code", code,
				"username", event.Username,
				"txn_id", event.TxnID,
				"request_id", input.RequestID,
			)
			result.Status = constants.ReceiveStatusError
			result.Error = "user not found"
			return result, nil
		}
		incoming.ErrorMessage = err.Error()
		s.audit.RecordIncoming(incoming)
		s.metrics.RecordReceived(code, "error", time.Since(started))
		return nil, err
	}
	incoming.ProfileID = profile.ID

	settled, err := s.settlement.Settle(ctx, provider, profile, event)
	if err != nil {
		if errors.Is(err, ErrDuplicatePostback) {
			incoming.ErrorMessage = joinErrors("duplicate postback", input.BodyError)
			s.audit.RecordIncoming(incoming)
			s.metrics.RecordDuplicate(code)
			s.metrics.RecordReceived(code, "duplicate", time.Since(started))
			logger.Infow("postback_duplicate_skipped",
				"provider_code", code,
				"txn_id", event.TxnID,
				"profile_id", profile.ID,
				"request_id", input.RequestID,
			)
			result.Status = constants.ReceiveStatusDuplicate
			result.Settlement = settled
			return result, nil
		}
		incoming.ErrorMessage = err.Error()
		s.audit.RecordIncoming(incoming)
		s.metrics.RecordReceived(code, "settlement_failed", time.Since(started))
		return nil, err
	}
	result.Settlement = settled

	result.Forward = s.forwarder.Forward(ctx, snapshot, event, ForwardMeta{
		ProfileID: profile.ID,
		RequestID: input.RequestID,
	})
	result.ForwardedTo = result.Forward.ForwardedTo

	if input.BodyError != nil {
		incoming.ErrorMessage = input.BodyError.Error()
	}
	s.audit.RecordIncoming(incoming)
	s.metrics.RecordReceived(code, "ok", time.Since(started))

	if settled != nil && settled.Applied {
		amount, _ := event.Payout.Float64()
		s.metrics.RecordSettled(code, settled.Unit, event.Status, amount)
		s.publishSettlement(ctx, profile, event, settled, input.RequestID)
	}
	logger.Infow("postback_received",
		"provider_code", code,
		"username", event.Username,
		"profile_id", profile.ID,
		"txn_id", event.TxnID,
		"status", event.Status,
		"payout", event.Payout.String(),
		"applied", settled != nil && settled.Applied,
		"forwarded_to", result.ForwardedTo,
		"request_id", input.RequestID,
	)
	return result, nil
}

// RecordRateLimited 记录被限流拒绝的入站回调
// 不读取配置、不结算、不转发，只保证留下一条入站审计日志
func (s *PostbackService) RecordRateLimited(input ReceiveInput) {
	code := strings.TrimSpace(input.ProviderCode)
	if input.Params == nil {
		input.Params = PostbackParams{}
	}
	s.audit.RecordIncoming(IncomingRecord{
		ProviderCode: code,
		Status:       constants.PostbackStatusFailed,
		Params:       input.Params,
		ErrorMessage: joinErrors(rateLimitedReason, input.BodyError),
		RequestID:    input.RequestID,
	})
	s.metrics.RecordReceived(code, "rate_limited", 0)
	logger.Warnw("postback_rate_limited", "provider_code", code, "request_id", input.RequestID)
}

func (s *PostbackService) publishSettlement(ctx context.Context, profile *models.LedgerProfile, event CanonicalEvent, settled *SettlementResult, requestID string) {
	err := s.publisher.PublishSettlement(ctx, events.SettlementEvent{
		ProviderCode: event.ProviderCode,
		ProfileID:    profile.ID,
		Username:     profile.Username,
		TxnID:        event.TxnID,
		OfferID:      event.OfferID,
		Status:       event.Status,
		Unit:         settled.Unit,
		Amount:       event.Payout.String(),
		BalanceAfter: settled.BalanceAfter.String(),
		RequestID:    requestID,
		SettledAt:    time.Now(),
	})
	if err != nil {
		logger.Warnw("postback_settlement_event_publish_failed",
			"provider_code", event.ProviderCode,
			"txn_id", event.TxnID,
			"error", err,
		)
	}
}

func joinErrors(reason string, bodyErr error) string {
	if bodyErr == nil {
		return reason
	}
	return reason + "; " + bodyErr.Error()
}
