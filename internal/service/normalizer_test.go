package service

import (
	"errors"
	"testing"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/models"

	"github.com/shopspring/decimal"
)

func TestNormalizeStatusSets(t *testing.T) {
	successes := []string{"1", "2", "success", "approved", "complete", "completed", "true", "yes", "ok", "done", " SUCCESS ", "Ok"}
	for _, raw := range successes {
		if got := NormalizeStatus(raw, ""); got != constants.PostbackStatusSuccess {
			t.Fatalf("status %q want success got %s", raw, got)
		}
	}
	reversals := []string{"reversed", "reversal", "-1", "3", "chargeback", "refund", "refunded", "ChargeBack"}
	for _, raw := range reversals {
		if got := NormalizeStatus(raw, ""); got != constants.PostbackStatusReversed {
			t.Fatalf("status %q want reversed got %s", raw, got)
		}
	}
	failures := []string{"", "0", "pending", "rejected", "4", "fail", "2.0"}
	for _, raw := range failures {
		if got := NormalizeStatus(raw, ""); got != constants.PostbackStatusFailed {
			t.Fatalf("status %q want failed got %s", raw, got)
		}
	}
}

func TestNormalizeStatusProviderLiteral(t *testing.T) {
	if got := NormalizeStatus("PAID", "paid"); got != constants.PostbackStatusSuccess {
		t.Fatalf("provider literal should match case-insensitively, got %s", got)
	}
	if got := NormalizeStatus("credited", "paid, credited"); got != constants.PostbackStatusSuccess {
		t.Fatalf("comma separated literals should match, got %s", got)
	}
	// 成功判定先于冲正判定
	if got := NormalizeStatus("3", "3"); got != constants.PostbackStatusSuccess {
		t.Fatalf("provider literal should win over reversal set, got %s", got)
	}
	if got := NormalizeStatus("paid", ""); got != constants.PostbackStatusFailed {
		t.Fatalf("unknown literal should fail without provider value, got %s", got)
	}
}

func TestComputePayout(t *testing.T) {
	cases := []struct {
		raw        string
		percentage int64
		want       int64
	}{
		{"10", 50, 5},
		{"3", 50, 2},
		{"2.5", 100, 3},
		{"7", 100, 7},
		{"1.4", 100, 1},
		{"1e2", 10, 10},
		{"abc", 100, 0},
		{"", 100, 0},
		{"10", 0, 0},
	}
	for _, tc := range cases {
		got := ComputePayout(tc.raw, decimal.NewFromInt(tc.percentage))
		if !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Fatalf("payout(%q, %d) want %d got %s", tc.raw, tc.percentage, tc.want, got.String())
		}
	}
}

func TestComputePayoutPassthroughAtFullPercentage(t *testing.T) {
	for _, raw := range []string{"0", "1", "15", "250", "99999"} {
		got := ComputePayout(raw, decimal.NewFromInt(100))
		if got.String() != raw {
			t.Fatalf("payout %s should pass through, got %s", raw, got.String())
		}
	}
}

func TestResolveProviderPrefersOfferwall(t *testing.T) {
	snapshot := NewRegistrySnapshot([]models.PostbackProvider{
		{ID: 1, Kind: constants.ProviderKindSurvey, Code: "dual", IsActive: true},
		{ID: 2, Kind: constants.ProviderKindOfferwall, Code: "dual", IsActive: true},
		{ID: 3, Kind: constants.ProviderKindOfferwall, Code: "off", IsActive: false},
		{ID: 4, Kind: constants.ProviderKindSurvey, Code: "poll", IsActive: true},
	}, nil)

	provider, err := ResolveProvider(snapshot, "dual")
	if err != nil || provider.ID != 2 {
		t.Fatalf("expected offerwall provider, got %+v err=%v", provider, err)
	}
	provider, err = ResolveProvider(snapshot, "poll")
	if err != nil || provider.ID != 4 {
		t.Fatalf("expected survey provider, got %+v err=%v", provider, err)
	}
	if _, err := ResolveProvider(snapshot, "off"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("inactive provider should be unknown, got %v", err)
	}
	if _, err := ResolveProvider(snapshot, "ghost"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("missing provider should be unknown, got %v", err)
	}
	if _, err := ResolveProvider(nil, "dual"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("nil snapshot should be unknown, got %v", err)
	}
}

func TestNormalizeMapsProviderFields(t *testing.T) {
	provider := testProvider("acme", constants.PayoutUnitCash, 50)
	provider.OfferKey = "oid"
	event := Normalize(&provider, PostbackParams{
		"uid": " alice ",
		"st":  "1",
		"amt": "10",
		"tid": "T-1",
		"oid": "offer-9",
	})
	if event.Username != "alice" || event.Status != constants.PostbackStatusSuccess {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !event.Payout.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("payout want 5 got %s", event.Payout.String())
	}
	if event.TxnID != "T-1" || event.OfferID != "offer-9" || event.ProviderCode != "acme" {
		t.Fatalf("unexpected identifiers: %+v", event)
	}
	if event.Unit != constants.PayoutUnitCash || event.RawStatus != "1" {
		t.Fatalf("unexpected unit/raw status: %+v", event)
	}

	missing := Normalize(&provider, PostbackParams{})
	if missing.Status != constants.PostbackStatusFailed || !missing.Payout.IsZero() {
		t.Fatalf("missing params should give failed zero event: %+v", missing)
	}
}
