package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/metrics"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForwardRetryEnqueuer 转发失败后的重试队列
type ForwardRetryEnqueuer interface {
	EnqueuePostbackForwardRetry(payload queue.ForwardRetryPayload) error
}

// PartnerLookup 按ID读取合作方
type PartnerLookup interface {
	GetPartner(id uint) (*models.DownstreamPartner, error)
}

// ForwarderOptions 转发配置
type ForwarderOptions struct {
	Timeout      time.Duration
	BodyLimit    int
	RetryEnabled bool
}

// ForwarderService 将归一化事件并发转发给所有启用的下游合作方
type ForwarderService struct {
	client  *http.Client
	opts    ForwarderOptions
	audit   *AuditService
	retry   ForwardRetryEnqueuer
	lookup  PartnerLookup
	metrics *metrics.PostbackMetrics
}

// ForwardMeta 转发上下文信息（用于审计）
type ForwardMeta struct {
	ProfileID string
	RequestID string
}

// ForwardAttempt 单个合作方的转发结果
type ForwardAttempt struct {
	PartnerID   uint
	PartnerName string
	URL         string
	Method      string
	StatusCode  int
	Body        string
	Err         error
	Dispatched  bool
}

// ForwardSummary 转发汇总，ForwardedTo 为返回了 HTTP 响应（任意状态码）的合作方数量
type ForwardSummary struct {
	Attempts    []ForwardAttempt
	ForwardedTo int
}

// NewForwarderService 创建转发服务
func NewForwarderService(opts ForwarderOptions, audit *AuditService, retry ForwardRetryEnqueuer, lookup PartnerLookup, m *metrics.PostbackMetrics) *ForwarderService {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultForwardTimeoutSeconds * time.Second
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = constants.DefaultResponseBodyLimit
	}
	return &ForwarderService{
		client:  &http.Client{},
		opts:    opts,
		audit:   audit,
		retry:   retry,
		lookup:  lookup,
		metrics: m,
	}
}

// ForwardStatusCode 下游状态编码：成功 1，冲正 2，其余 0
func ForwardStatusCode(status string) string {
	switch status {
	case constants.PostbackStatusSuccess:
		return constants.ForwardStatusCodeSuccess
	case constants.PostbackStatusReversed:
		return constants.ForwardStatusCodeReversed
	default:
		return constants.ForwardStatusCodeFailed
	}
}

// BuildForwardURL 构建下游地址：保留原有查询参数，先写附加参数，再用映射字段覆盖；参数名为空的字段不发送
func BuildForwardURL(partner *models.DownstreamPartner, event CanonicalEvent) (string, error) {
	if partner == nil || strings.TrimSpace(partner.URL) == "" {
		return "", ErrForwardURLInvalid
	}
	target, err := url.Parse(strings.TrimSpace(partner.URL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForwardURLInvalid, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrForwardURLInvalid, target.Scheme)
	}
	if target.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrForwardURLInvalid)
	}
	query := target.Query()
	for key, value := range partner.ExtraParams {
		if strings.TrimSpace(key) == "" {
			continue
		}
		query.Set(key, value)
	}
	mapped := []struct {
		name  string
		value string
	}{
		{partner.UsernameParam, event.Username},
		{partner.StatusParam, ForwardStatusCode(event.Status)},
		{partner.PayoutParam, event.Payout.String()},
		{partner.TxnParam, event.TxnID},
		{partner.OfferParam, event.ProviderCode},
	}
	for _, field := range mapped {
		name := strings.TrimSpace(field.name)
		if name == "" {
			continue
		}
		query.Set(name, field.value)
	}
	target.RawQuery = query.Encode()
	return target.String(), nil
}

func forwardMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return constants.DefaultForwardMethod
	}
	return method
}

// Forward 并发转发给快照中所有启用的合作方
// 每个合作方独立超时，运行在与入站请求解耦的上下文上；任一合作方失败不影响其他合作方
func (s *ForwarderService) Forward(ctx context.Context, snapshot *RegistrySnapshot, event CanonicalEvent, meta ForwardMeta) ForwardSummary {
	partners := snapshot.ActivePartners()
	summary := ForwardSummary{Attempts: make([]ForwardAttempt, len(partners))}
	if len(partners) == 0 {
		return summary
	}
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := range partners {
		wg.Add(1)
		go func(idx int, partner models.DownstreamPartner) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Errorw("postback_forward_panic", "partner_id", partner.ID, "panic", r)
					attempt := ForwardAttempt{
						PartnerID:   partner.ID,
						PartnerName: partner.Name,
						Method:      forwardMethod(partner.Method),
						Err:         fmt.Errorf("%w: panic: %v", ErrPartnerDeliveryFailed, r),
					}
					summary.Attempts[idx] = attempt
					// 出站日志同样每次尝试一条
					s.recordAttempt(attempt, event, meta)
				}
			}()
			summary.Attempts[idx] = s.forwardOne(base, &partner, event, meta)
		}(i, partners[i])
	}
	wg.Wait()

	for _, attempt := range summary.Attempts {
		if attempt.Dispatched {
			summary.ForwardedTo++
		}
	}
	return summary
}

func (s *ForwarderService) forwardOne(ctx context.Context, partner *models.DownstreamPartner, event CanonicalEvent, meta ForwardMeta) ForwardAttempt {
	attempt := ForwardAttempt{
		PartnerID:   partner.ID,
		PartnerName: partner.Name,
		Method:      forwardMethod(partner.Method),
	}
	target, err := BuildForwardURL(partner, event)
	if err != nil {
		attempt.Err = err
		s.recordAttempt(attempt, event, meta)
		return attempt
	}
	attempt.URL = target

	started := time.Now()
	attempt.StatusCode, attempt.Body, attempt.Err = s.deliver(ctx, attempt.Method, target)
	attempt.Dispatched = attempt.Err == nil
	s.metrics.RecordForward(partner.Name, forwardOutcome(attempt), time.Since(started))
	s.recordAttempt(attempt, event, meta)

	if s.shouldRetry(attempt) {
		s.enqueueRetry(attempt, event, meta)
	}
	return attempt
}

func (s *ForwarderService) recordAttempt(attempt ForwardAttempt, event CanonicalEvent, meta ForwardMeta) {
	rec := OutgoingRecord{
		ProviderCode: event.ProviderCode,
		PartnerID:    attempt.PartnerID,
		PartnerName:  attempt.PartnerName,
		ProfileID:    meta.ProfileID,
		Username:     event.Username,
		TxnID:        event.TxnID,
		Status:       event.Status,
		Payout:       event.Payout,
		URL:          attempt.URL,
		Method:       attempt.Method,
		ResponseCode: attempt.StatusCode,
		ResponseBody: attempt.Body,
		RequestID:    meta.RequestID,
	}
	if attempt.Err != nil {
		rec.ErrorMessage = attempt.Err.Error()
		logger.Warnw("postback_forward_failed",
			"partner_id", attempt.PartnerID,
			"partner_name", attempt.PartnerName,
			"url", attempt.URL,
			"txn_id", event.TxnID,
			"request_id", meta.RequestID,
			"error", attempt.Err,
		)
	} else {
		logger.Infow("postback_forwarded",
			"partner_id", attempt.PartnerID,
			"partner_name", attempt.PartnerName,
			"status_code", attempt.StatusCode,
			"txn_id", event.TxnID,
			"request_id", meta.RequestID,
		)
	}
	s.audit.RecordOutgoing(rec)
}

// deliver 发送无请求体的请求，返回状态码与截断后的响应片段
func (s *ForwarderService) deliver(ctx context.Context, method, target string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrPartnerDeliveryFailed, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrPartnerDeliveryFailed, err)
	}
	defer resp.Body.Close()
	// UTF-8 单字符最多 4 字节
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.opts.BodyLimit)*4))
	if err != nil {
		logger.Debugw("postback_forward_read_body_failed", "url", target, "error", err)
	}
	return resp.StatusCode, truncateRunes(string(data), s.opts.BodyLimit), nil
}

func (s *ForwarderService) shouldRetry(attempt ForwardAttempt) bool {
	if !s.opts.RetryEnabled || s.retry == nil || attempt.URL == "" {
		return false
	}
	return attempt.Err != nil || !isSuccessStatus(attempt.StatusCode)
}

func (s *ForwarderService) enqueueRetry(attempt ForwardAttempt, event CanonicalEvent, meta ForwardMeta) {
	payload := queue.ForwardRetryPayload{
		PartnerID:    attempt.PartnerID,
		PartnerName:  attempt.PartnerName,
		URL:          attempt.URL,
		Method:       attempt.Method,
		ProviderCode: event.ProviderCode,
		ProfileID:    meta.ProfileID,
		Username:     event.Username,
		TxnID:        event.TxnID,
		Status:       event.Status,
		Payout:       event.Payout.String(),
		RequestID:    meta.RequestID,
	}
	if err := s.retry.EnqueuePostbackForwardRetry(payload); err != nil {
		logger.Warnw("postback_forward_retry_enqueue_failed",
			"partner_id", attempt.PartnerID,
			"txn_id", event.TxnID,
			"error", err,
		)
		return
	}
	s.metrics.RecordRetryEnqueued(attempt.PartnerName)
}

// Redeliver 重试队列消费：复用首次构建的地址重新发送，并写入一条出站审计日志
// 仍然失败时返回错误交由队列重试
func (s *ForwarderService) Redeliver(ctx context.Context, payload queue.ForwardRetryPayload) error {
	if strings.TrimSpace(payload.URL) == "" {
		return nil
	}
	payout, err := decimal.NewFromString(payload.Payout)
	if err != nil {
		payout = decimal.Zero
	}
	event := CanonicalEvent{
		Username:     payload.Username,
		Status:       payload.Status,
		Payout:       payout,
		TxnID:        payload.TxnID,
		ProviderCode: payload.ProviderCode,
	}
	attempt := ForwardAttempt{
		PartnerID:   payload.PartnerID,
		PartnerName: payload.PartnerName,
		URL:         payload.URL,
		Method:      forwardMethod(payload.Method),
	}
	started := time.Now()
	attempt.StatusCode, attempt.Body, attempt.Err = s.deliver(ctx, attempt.Method, attempt.URL)
	attempt.Dispatched = attempt.Err == nil
	s.metrics.RecordForward(payload.PartnerName, forwardOutcome(attempt), time.Since(started))
	s.recordAttempt(attempt, event, ForwardMeta{ProfileID: payload.ProfileID, RequestID: payload.RequestID})
	if attempt.Err != nil {
		return attempt.Err
	}
	if !isSuccessStatus(attempt.StatusCode) {
		return fmt.Errorf("%w: status %d", ErrPartnerDeliveryFailed, attempt.StatusCode)
	}
	return nil
}

// TestPostbackInput 运维测试发送输入
type TestPostbackInput struct {
	PartnerID uint
	Username  string
	OfferName string
	Points    decimal.Decimal
	Status    string
	RequestID string
}

// TestPostbackResult 测试发送结果（原样返回下游响应）
type TestPostbackResult struct {
	TxnID      string `json:"txn_id"`
	URL        string `json:"url"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
	Error      string `json:"error,omitempty"`
}

// SendTest 向指定合作方发送一条合成回调，日志与真实转发一致
func (s *ForwarderService) SendTest(ctx context.Context, input TestPostbackInput) (*TestPostbackResult, error) {
	if input.PartnerID == 0 || strings.TrimSpace(input.Username) == "" {
		return nil, ErrTestPostbackInvalid
	}
	if s.lookup == nil {
		return nil, ErrPartnerNotFound
	}
	partner, err := s.lookup.GetPartner(input.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}
	status := constants.PostbackStatusSuccess
	if strings.TrimSpace(input.Status) != "" {
		status = NormalizeStatus(input.Status, "")
	}
	offerName := strings.TrimSpace(input.OfferName)
	if offerName == "" {
		offerName = "test"
	}
	event := CanonicalEvent{
		Username:     strings.TrimSpace(input.Username),
		Status:       status,
		Payout:       input.Points.Round(0),
		TxnID:        constants.TestTxnIDPrefix + uuid.NewString(),
		ProviderCode: offerName,
		Unit:         constants.PayoutUnitPoints,
	}
	target, err := BuildForwardURL(partner, event)
	if err != nil {
		return nil, err
	}
	attempt := ForwardAttempt{
		PartnerID:   partner.ID,
		PartnerName: partner.Name,
		URL:         target,
		Method:      forwardMethod(partner.Method),
	}
	attempt.StatusCode, attempt.Body, attempt.Err = s.deliver(context.WithoutCancel(ctx), attempt.Method, target)
	attempt.Dispatched = attempt.Err == nil
	s.recordAttempt(attempt, event, ForwardMeta{RequestID: input.RequestID})

	result := &TestPostbackResult{
		TxnID:      event.TxnID,
		URL:        target,
		Method:     attempt.Method,
		StatusCode: attempt.StatusCode,
		Body:       attempt.Body,
	}
	if attempt.Err != nil {
		result.Error = attempt.Err.Error()
	}
	return result, nil
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

func forwardOutcome(attempt ForwardAttempt) string {
	switch {
	case attempt.Err != nil:
		return "transport_error"
	case isSuccessStatus(attempt.StatusCode):
		return "delivered"
	default:
		return "rejected"
	}
}
