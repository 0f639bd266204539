package public

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	handlershared "github.com/postback-relay/internal/http/handlers/shared"
	"github.com/postback-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// 入站回调请求体上限
const maxPostbackBodyBytes = 1 << 20

type receivePostbackResponse struct {
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	NormalizedStatus string `json:"normalized_status"`
	Payout           int64  `json:"payout"`
	ForwardedTo      int    `json:"forwarded_to"`
}

// ReceivePostback 接收上游回调（GET 查询串或 POST 表单/JSON）
func (h *Handler) ReceivePostback(c *gin.Context) {
	log := handlershared.RequestLog(c)
	input := readPostbackInput(c)
	code := input.ProviderCode

	result, err := h.PostbackService.Receive(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}
		log.Errorw("postback_receive_failed", "provider_code", code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(result.HTTPStatus, receivePostbackResponse{
		Status:           result.Status,
		Error:            result.Error,
		NormalizedStatus: result.NormalizedStatus,
		Payout:           result.Payout.IntPart(),
		ForwardedTo:      result.ForwardedTo,
	})
}

// RejectRateLimitedPostback 限流命中时的响应：仍写入入站审计，再返回 429
func (h *Handler) RejectRateLimitedPostback(c *gin.Context, retryAfter int) {
	h.PostbackService.RecordRateLimited(readPostbackInput(c))
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": fmt.Sprintf("too many requests, retry after %d seconds", retryAfter),
	})
}

// readPostbackInput 合并查询串与请求体参数；只有 POST 才读取请求体
func readPostbackInput(c *gin.Context) service.ReceiveInput {
	code := strings.TrimSpace(c.Param("code"))
	params := service.NewPostbackParams(c.Request.URL.Query())

	var bodyErr error
	if c.Request.Method == http.MethodPost && c.Request.Body != nil && c.Request.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPostbackBodyBytes))
		if err != nil {
			bodyErr = fmt.Errorf("%w: %v", service.ErrMalformedBody, err)
		} else {
			bodyErr = params.MergeBody(c.ContentType(), body)
		}
		if bodyErr != nil {
			handlershared.RequestLog(c).Warnw("postback_body_malformed", "provider_code", code, "error", bodyErr)
		}
	}
	return service.ReceiveInput{
		ProviderCode: code,
		Params:       params,
		RequestID:    handlershared.RequestID(c),
		BodyError:    bodyErr,
	}
}
