package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/postback-relay/internal/config"
	"github.com/postback-relay/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// PostbackQueue 回调转发队列名称
	PostbackQueue = constants.QueuePostback

	defaultForwardRetryMax = 5
)

// Client 队列客户端封装
type Client struct {
	client        *asynq.Client
	enabled       bool
	postbackQueue string
	maxRetry      int
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig, retry *config.ForwardRetryConfig) (*Client, error) {
	c := &Client{postbackQueue: PostbackQueue, maxRetry: defaultForwardRetryMax}
	if retry != nil {
		if name := strings.TrimSpace(retry.Queue); name != "" {
			c.postbackQueue = name
		}
		if retry.MaxRetry > 0 {
			c.maxRetry = retry.MaxRetry
		}
	}
	if cfg == nil || !cfg.Enabled {
		return c, nil
	}
	c.client = asynq.NewClient(buildRedisOpt(cfg))
	c.enabled = true
	return c, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePostbackForwardRetry 推送下游转发重试任务
func (c *Client) EnqueuePostbackForwardRetry(payload ForwardRetryPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewForwardRetryTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task,
		asynq.Queue(c.postbackQueue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(time.Minute),
	)
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1, PostbackQueue: 5}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         queues,
		RetryDelayFunc: ForwardRetryDelay,
	}
}

// ForwardRetryDelay 重试退避：10s、20s、40s ... 最长 30 分钟
func ForwardRetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 8 {
		n = 8
	}
	delay := 10 * time.Second * time.Duration(1<<uint(n))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	return delay
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
