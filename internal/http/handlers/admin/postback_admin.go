package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/postback-relay/internal/http/handlers/shared"
	"github.com/postback-relay/internal/http/response"
	"github.com/postback-relay/internal/repository"
	"github.com/postback-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SendTestPostbackRequest 测试发送请求
type SendTestPostbackRequest struct {
	PartnerID uint            `json:"partner_id" binding:"required"`
	Username  string          `json:"username" binding:"required"`
	OfferName string          `json:"offer_name"`
	Points    decimal.Decimal `json:"points"`
	Status    string          `json:"status"`
}

// SendTestPostback 向指定合作方发送测试回调
func (h *Handler) SendTestPostback(c *gin.Context) {
	var req SendTestPostbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	handlershared.RequestLog(c).Infow("admin_send_test_postback",
		"operator", handlershared.Operator(c),
		"partner_id", req.PartnerID,
		"username", req.Username,
	)
	result, err := h.ForwarderService.SendTest(c.Request.Context(), service.TestPostbackInput{
		PartnerID: req.PartnerID,
		Username:  req.Username,
		OfferName: req.OfferName,
		Points:    req.Points,
		Status:    req.Status,
		RequestID: handlershared.RequestID(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPartnerNotFound):
			handlershared.RespondError(c, response.CodeNotFound, "partner not found", nil)
		case errors.Is(err, service.ErrTestPostbackInvalid), errors.Is(err, service.ErrForwardURLInvalid):
			handlershared.RespondError(c, response.CodeBadRequest, err.Error(), nil)
		default:
			handlershared.RespondError(c, response.CodeInternal, "send test postback failed", err)
		}
		return
	}
	response.Success(c, result)
}

// ListPostbackLogs 查询回调审计日志
func (h *Handler) ListPostbackLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = repository.NormalizePagination(page, pageSize)

	var partnerID uint
	if raw := strings.TrimSpace(c.Query("partner_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			handlershared.RespondError(c, response.CodeBadRequest, "invalid partner_id", err)
			return
		}
		partnerID = uint(parsed)
	}
	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "invalid created_from", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "invalid created_to", err)
		return
	}

	logs, total, err := h.AuditService.ListLogs(repository.PostbackLogListFilter{
		Page:         page,
		PageSize:     pageSize,
		Direction:    strings.TrimSpace(c.Query("direction")),
		ProviderCode: strings.TrimSpace(c.Query("provider_code")),
		PartnerID:    partnerID,
		TxnID:        strings.TrimSpace(c.Query("txn_id")),
		Status:       strings.TrimSpace(c.Query("status")),
		Username:     strings.TrimSpace(c.Query("username")),
		RawKey:       strings.TrimSpace(c.Query("raw_key")),
		RawValue:     strings.TrimSpace(c.Query("raw_value")),
		CreatedFrom:  createdFrom,
		CreatedTo:    createdTo,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidJSONKey) {
			handlershared.RespondError(c, response.CodeBadRequest, "invalid raw_key", nil)
			return
		}
		handlershared.RespondError(c, response.CodeInternal, "postback log query failed", err)
		return
	}
	response.SuccessWithPage(c, logs, response.BuildPagination(page, pageSize, total))
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
