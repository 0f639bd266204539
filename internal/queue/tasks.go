package queue

import (
	"encoding/json"

	"github.com/postback-relay/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPostbackForwardRetry 下游转发重试任务
	TaskPostbackForwardRetry = constants.TaskPostbackForwardRetry
)

// ForwardRetryPayload 下游转发重试任务载荷，重试时复用首次构建的地址
type ForwardRetryPayload struct {
	PartnerID    uint   `json:"partner_id"`
	PartnerName  string `json:"partner_name"`
	URL          string `json:"url"`
	Method       string `json:"method"`
	ProviderCode string `json:"provider_code"`
	ProfileID    string `json:"profile_id"`
	Username     string `json:"username"`
	TxnID        string `json:"txn_id"`
	Status       string `json:"status"`
	Payout       string `json:"payout"`
	RequestID    string `json:"request_id"`
}

// NewForwardRetryTask 创建转发重试任务
func NewForwardRetryTask(payload ForwardRetryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPostbackForwardRetry, body), nil
}

// ParseForwardRetryPayload 解析转发重试任务载荷
func ParseForwardRetryPayload(task *asynq.Task) (ForwardRetryPayload, error) {
	var payload ForwardRetryPayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
