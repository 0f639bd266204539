package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/postback-relay/internal/config"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

// Publisher 结算事件发布接口
type Publisher interface {
	PublishSettlement(ctx context.Context, event SettlementEvent) error
	Close() error
}

// KafkaPublisher 基于 kafka-go 的事件发布
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewPublisher 按配置创建发布器，未启用时返回 NopPublisher
func NewPublisher(cfg *config.KafkaConfig) Publisher {
	if cfg == nil || !cfg.Enabled {
		return NopPublisher{}
	}
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 || strings.TrimSpace(cfg.Topic) == "" {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, strings.TrimSpace(cfg.Topic))
}

// NewKafkaPublisher 创建 Kafka 发布器
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishSettlement 发布结算事件，按档案ID分区保证同一用户有序
func (k *KafkaPublisher) PublishSettlement(ctx context.Context, event SettlementEvent) error {
	if k == nil || k.writer == nil {
		return errors.New("kafka publisher not initialized")
	}
	msg, err := encodeSettlement(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, msg)
}

// Close 关闭写入器
func (k *KafkaPublisher) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

func encodeSettlement(event SettlementEvent) (kafka.Message, error) {
	if event.SettledAt.IsZero() {
		event.SettledAt = time.Now()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.ProfileID),
		Value: value,
		Time:  event.SettledAt,
	}, nil
}

// NopPublisher 未启用事件发布时使用
type NopPublisher struct{}

// PublishSettlement 忽略事件
func (NopPublisher) PublishSettlement(context.Context, SettlementEvent) error { return nil }

// Close 无操作
func (NopPublisher) Close() error { return nil }
