package worker

import (
	"context"
	"errors"

	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/provider"
	"github.com/postback-relay/internal/queue"
	"github.com/postback-relay/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPostbackForwardRetry, c.handlePostbackForwardRetry)
}

func (c *Consumer) handlePostbackForwardRetry(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_forward_retry_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseForwardRetryPayload(task)
	if err != nil {
		logger.Warnw("worker_forward_retry_unmarshal_failed", "error", err)
		// 载荷损坏重试无意义
		return errors.Join(err, asynq.SkipRetry)
	}
	if payload.URL == "" {
		logger.Debugw("worker_forward_retry_skip_invalid_payload", "partner_id", payload.PartnerID, "txn_id", payload.TxnID)
		return nil
	}
	if c.ForwarderService == nil {
		logger.Warnw("worker_forward_retry_skip_forwarder_nil", "partner_id", payload.PartnerID)
		return nil
	}
	if err := c.ForwarderService.Redeliver(ctx, payload); err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		fields := []interface{}{
			"partner_id", payload.PartnerID,
			"partner_name", payload.PartnerName,
			"txn_id", payload.TxnID,
			"retried", retried,
			"max_retry", maxRetry,
			"error", err,
		}
		if errors.Is(err, service.ErrPartnerDeliveryFailed) && retried >= maxRetry {
			logger.Errorw("worker_forward_retry_exhausted", fields...)
		} else {
			logger.Warnw("worker_forward_retry_failed", fields...)
		}
		return err
	}
	logger.Infow("worker_forward_retry_delivered",
		"partner_id", payload.PartnerID,
		"txn_id", payload.TxnID,
		"request_id", payload.RequestID,
	)
	return nil
}
