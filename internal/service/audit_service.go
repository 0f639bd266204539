package service

import (
	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/metrics"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/repository"

	"github.com/shopspring/decimal"
)

// AuditService 回调审计日志（只追加，写入失败不影响回调结果）
type AuditService struct {
	repo      repository.PostbackLogRepository
	metrics   *metrics.PostbackMetrics
	bodyLimit int
}

// IncomingRecord 入站审计记录
type IncomingRecord struct {
	ProviderCode string
	ProfileID    string
	Username     string
	TxnID        string
	Status       string
	Payout       decimal.Decimal
	Params       PostbackParams
	ErrorMessage string
	RequestID    string
}

// OutgoingRecord 出站审计记录
type OutgoingRecord struct {
	ProviderCode string
	PartnerID    uint
	PartnerName  string
	ProfileID    string
	Username     string
	TxnID        string
	Status       string
	Payout       decimal.Decimal
	URL          string
	Method       string
	ResponseCode int
	ResponseBody string
	ErrorMessage string
	RequestID    string
}

// NewAuditService 创建审计服务
func NewAuditService(repo repository.PostbackLogRepository, m *metrics.PostbackMetrics, bodyLimit int) *AuditService {
	if bodyLimit <= 0 {
		bodyLimit = constants.DefaultResponseBodyLimit
	}
	return &AuditService{repo: repo, metrics: m, bodyLimit: bodyLimit}
}

// RecordIncoming 写入一条入站审计日志
func (s *AuditService) RecordIncoming(rec IncomingRecord) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.PostbackLog{
		Direction:    constants.PostbackDirectionIncoming,
		ProviderCode: rec.ProviderCode,
		ProfileID:    rec.ProfileID,
		Username:     rec.Username,
		TxnID:        rec.TxnID,
		Status:       rec.Status,
		Payout:       models.NewMoneyFromDecimal(rec.Payout),
		RawParams:    rec.Params.ToJSON(),
		ErrorMessage: rec.ErrorMessage,
		RequestID:    rec.RequestID,
	}
	if err := s.repo.Create(entry); err != nil {
		s.metrics.RecordAuditError(constants.PostbackDirectionIncoming)
		logger.Errorw("postback_audit_incoming_write_failed",
			"provider_code", rec.ProviderCode,
			"txn_id", rec.TxnID,
			"request_id", rec.RequestID,
			"error", err,
		)
	}
}

// RecordOutgoing 写入一条出站审计日志
func (s *AuditService) RecordOutgoing(rec OutgoingRecord) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.PostbackLog{
		Direction:    constants.PostbackDirectionOutgoing,
		ProviderCode: rec.ProviderCode,
		PartnerName:  rec.PartnerName,
		ProfileID:    rec.ProfileID,
		Username:     rec.Username,
		TxnID:        rec.TxnID,
		Status:       rec.Status,
		Payout:       models.NewMoneyFromDecimal(rec.Payout),
		TargetURL:    rec.URL,
		Method:       rec.Method,
		ResponseCode: rec.ResponseCode,
		ResponseBody: truncateRunes(rec.ResponseBody, s.bodyLimit),
		ErrorMessage: rec.ErrorMessage,
		RequestID:    rec.RequestID,
	}
	if rec.PartnerID != 0 {
		partnerID := rec.PartnerID
		entry.PartnerID = &partnerID
	}
	if err := s.repo.Create(entry); err != nil {
		s.metrics.RecordAuditError(constants.PostbackDirectionOutgoing)
		logger.Errorw("postback_audit_outgoing_write_failed",
			"partner_id", rec.PartnerID,
			"txn_id", rec.TxnID,
			"request_id", rec.RequestID,
			"error", err,
		)
	}
}

// ListLogs 运维查询审计日志
func (s *AuditService) ListLogs(filter repository.PostbackLogListFilter) ([]models.PostbackLog, int64, error) {
	filter.Page, filter.PageSize = repository.NormalizePagination(filter.Page, filter.PageSize)
	return s.repo.ListAdmin(filter)
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
