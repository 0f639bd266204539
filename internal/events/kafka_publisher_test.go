package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/postback-relay/internal/config"
)

func TestNewPublisherDisabledReturnsNop(t *testing.T) {
	if _, ok := NewPublisher(nil).(NopPublisher); !ok {
		t.Fatalf("nil config should produce nop publisher")
	}
	if _, ok := NewPublisher(&config.KafkaConfig{Enabled: true, Brokers: []string{"  "}, Topic: "t"}).(NopPublisher); !ok {
		t.Fatalf("empty brokers should produce nop publisher")
	}
	pub := NewPublisher(&config.KafkaConfig{Enabled: true, Brokers: []string{"127.0.0.1:9092"}, Topic: "postback.settled"})
	kp, ok := pub.(*KafkaPublisher)
	if !ok {
		t.Fatalf("expected kafka publisher, got %T", pub)
	}
	if kp.writer.Topic != "postback.settled" {
		t.Fatalf("unexpected topic: %s", kp.writer.Topic)
	}
	if err := (NopPublisher{}).PublishSettlement(context.Background(), SettlementEvent{}); err != nil {
		t.Fatalf("nop publish should not fail: %v", err)
	}
}

func TestEncodeSettlementUsesProfileKey(t *testing.T) {
	settledAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := encodeSettlement(SettlementEvent{
		ProviderCode: "acme",
		ProfileID:    "p-1",
		TxnID:        "t-1",
		Status:       "success",
		Unit:         "points",
		Amount:       "5",
		SettledAt:    settledAt,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(msg.Key) != "p-1" {
		t.Fatalf("unexpected key: %s", msg.Key)
	}
	if !msg.Time.Equal(settledAt) {
		t.Fatalf("unexpected message time: %v", msg.Time)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["amount"] != "5" || decoded["provider_code"] != "acme" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}
