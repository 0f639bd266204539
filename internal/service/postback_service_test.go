package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/events"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/repository"

	"github.com/shopspring/decimal"
)

type publisherStub struct {
	events []events.SettlementEvent
}

func (p *publisherStub) PublishSettlement(_ context.Context, event events.SettlementEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) Close() error { return nil }

type failingRegistry struct{}

func (failingRegistry) Load(context.Context) (*RegistrySnapshot, error) {
	return nil, ErrRegistryLoadFailed
}

func acmeSnapshot(partners ...models.DownstreamPartner) *RegistrySnapshot {
	provider := testProvider("acme", constants.PayoutUnitPoints, 50)
	provider.OfferKey = "oid"
	return NewRegistrySnapshot([]models.PostbackProvider{provider}, partners)
}

func acmeParams(username, txnID string) PostbackParams {
	return PostbackParams{"uid": username, "st": "1", "amt": "10", "tid": txnID, "oid": "offer-1"}
}

func TestReceiveCreditsAndForwards(t *testing.T) {
	env := newRelayTestEnv(t, "receive_credit", true)
	alice := env.createProfile(t, models.LedgerProfile{Username: "alice"})
	click := models.OfferClick{ProfileID: alice.ID, CompletionStatus: constants.ClickStatusClicked, ClickedAt: time.Now()}
	if err := env.db.Create(&click).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}
	recorder := &partnerRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK, "OK"))
	defer server.Close()

	publisher := &publisherStub{}
	svc := NewPostbackService(
		StaticRegistry{Snapshot: acmeSnapshot(testPartner(1, server.URL))},
		NewIdentityResolver(env.ledgerRepo),
		env.settlement,
		env.forwarder,
		env.audit,
		publisher,
		nil,
	)
	result, err := svc.Receive(context.Background(), ReceiveInput{
		ProviderCode: "acme",
		Params:       acmeParams("alice", "T1"),
		RequestID:    "req-1",
	})
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if result.HTTPStatus != http.StatusOK || result.Status != constants.ReceiveStatusOK {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.NormalizedStatus != constants.PostbackStatusSuccess || !result.Payout.Equal(decimal.NewFromInt(5)) || result.ForwardedTo != 1 {
		t.Fatalf("unexpected normalized result: %+v", result)
	}

	if got := env.reloadProfile(t, alice.ID); got.Points != 5 {
		t.Fatalf("points want 5 got %d", got.Points)
	}
	var earnings []models.EarningRecord
	if err := env.db.Find(&earnings).Error; err != nil {
		t.Fatalf("list earnings failed: %v", err)
	}
	if len(earnings) != 1 || earnings[0].Status != constants.EarningStatusApproved || !earnings[0].Amount.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected earnings: %+v", earnings)
	}
	var reloaded models.OfferClick
	if err := env.db.First(&reloaded, click.ID).Error; err != nil {
		t.Fatalf("reload click failed: %v", err)
	}
	if reloaded.CompletionStatus != constants.ClickStatusCompleted {
		t.Fatalf("click should complete, got %s", reloaded.CompletionStatus)
	}

	query := recorder.last().URL.Query()
	if query.Get("user") != "alice" || query.Get("status") != "1" || query.Get("points") != "5" || query.Get("txn") != "T1" || query.Get("offer") != "acme" {
		t.Fatalf("unexpected forward query: %s", recorder.last().URL.RawQuery)
	}

	incoming := env.listLogs(t, constants.PostbackDirectionIncoming)
	if len(incoming) != 1 {
		t.Fatalf("expected one incoming log, got %d", len(incoming))
	}
	if incoming[0].ProfileID != alice.ID || incoming[0].Status != constants.PostbackStatusSuccess || incoming[0].RequestID != "req-1" {
		t.Fatalf("unexpected incoming log: %+v", incoming[0])
	}
	if incoming[0].RawParams["uid"] != "alice" {
		t.Fatalf("raw params should be kept: %+v", incoming[0].RawParams)
	}
	if outgoing := env.listLogs(t, constants.PostbackDirectionOutgoing); len(outgoing) != 1 {
		t.Fatalf("expected one outgoing log, got %d", len(outgoing))
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one settlement event, got %d", len(publisher.events))
	}
	if event := publisher.events[0]; event.ProfileID != alice.ID || event.Amount != "5" || event.BalanceAfter != "5" {
		t.Fatalf("unexpected settlement event: %+v", event)
	}
}

func TestReceiveUnknownProvider(t *testing.T) {
	env := newRelayTestEnv(t, "receive_unknown", true)
	alice := env.createProfile(t, models.LedgerProfile{Username: "alice"})
	svc := env.postbackService(acmeSnapshot())

	result, err := svc.Receive(context.Background(), ReceiveInput{
		ProviderCode: "ghost",
		Params:       acmeParams("alice", "T1"),
	})
	if !errors.Is(err, ErrUnknownProvider) || result != nil {
		t.Fatalf("expected unknown provider, got result=%+v err=%v", result, err)
	}
	incoming := env.listLogs(t, constants.PostbackDirectionIncoming)
	if len(incoming) != 1 || incoming[0].Status != constants.PostbackStatusFailed || incoming[0].ProviderCode != "ghost" {
		t.Fatalf("expected one failed incoming log: %+v", incoming)
	}
	if got := env.reloadProfile(t, alice.ID); got.Points != 0 {
		t.Fatalf("unknown provider should not mutate ledger, got %d", got.Points)
	}
}

func TestReceiveUserNotFound(t *testing.T) {
	env := newRelayTestEnv(t, "receive_no_user", true)
	recorder := &partnerRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK, "OK"))
	defer server.Close()
	svc := env.postbackService(acmeSnapshot(testPartner(1, server.URL)))

	result, err := svc.Receive(context.Background(), ReceiveInput{
		ProviderCode: "acme",
		Params:       acmeParams("nobody", "T9"),
	})
	if err != nil {
		t.Fatalf("user not found should not be an error, got %v", err)
	}
	if result.HTTPStatus != http.StatusOK || result.Status != constants.ReceiveStatusError || result.Error != "user not found" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if recorder.count() != 0 || result.ForwardedTo != 0 {
		t.Fatalf("user not found should not forward")
	}
	incoming := env.listLogs(t, constants.PostbackDirectionIncoming)
	if len(incoming) != 1 || incoming[0].ErrorMessage != "user not found" {
		t.Fatalf("expected one incoming log with error: %+v", incoming)
	}
}

func TestReceiveDuplicateSkipsForward(t *testing.T) {
	env := newRelayTestEnv(t, "receive_duplicate", true)
	alice := env.createProfile(t, models.LedgerProfile{Username: "alice"})
	recorder := &partnerRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK, "OK"))
	defer server.Close()
	svc := env.postbackService(acmeSnapshot(testPartner(1, server.URL)))

	for i := 0; i < 2; i++ {
		if _, err := svc.Receive(context.Background(), ReceiveInput{ProviderCode: "acme", Params: acmeParams("alice", "T1")}); err != nil {
			t.Fatalf("receive %d failed: %v", i, err)
		}
	}
	result, err := svc.Receive(context.Background(), ReceiveInput{ProviderCode: "acme", Params: acmeParams("alice", "T1")})
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if result.Status != constants.ReceiveStatusDuplicate || result.ForwardedTo != 0 {
		t.Fatalf("expected duplicate without forward: %+v", result)
	}
	if got := env.reloadProfile(t, alice.ID); got.Points != 5 {
		t.Fatalf("duplicate should credit once, got %d", got.Points)
	}
	if recorder.count() != 1 {
		t.Fatalf("duplicate should forward once, got %d", recorder.count())
	}
	if incoming := env.listLogs(t, constants.PostbackDirectionIncoming); len(incoming) != 3 {
		t.Fatalf("every request should be audited, got %d", len(incoming))
	}
}

func TestReceiveFailedStatusStillForwards(t *testing.T) {
	env := newRelayTestEnv(t, "receive_failed_status", true)
	alice := env.createProfile(t, models.LedgerProfile{Username: "alice", Points: 2})
	recorder := &partnerRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK, "OK"))
	defer server.Close()
	svc := env.postbackService(acmeSnapshot(testPartner(1, server.URL)))

	params := acmeParams("alice", "T5")
	params["st"] = "pending"
	result, err := svc.Receive(context.Background(), ReceiveInput{ProviderCode: "acme", Params: params})
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if result.NormalizedStatus != constants.PostbackStatusFailed || result.ForwardedTo != 1 {
		t.Fatalf("failed status should still forward: %+v", result)
	}
	if recorder.last().URL.Query().Get("status") != "0" {
		t.Fatalf("failed status should forward as 0")
	}
	if got := env.reloadProfile(t, alice.ID); got.Points != 2 {
		t.Fatalf("failed status should not mutate ledger, got %d", got.Points)
	}
}

func TestReceiveSettlementFailureSkipsForward(t *testing.T) {
	env := newRelayTestEnv(t, "receive_settle_fail", true)
	env.createProfile(t, models.LedgerProfile{Username: "alice"})
	recorder := &partnerRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK, "OK"))
	defer server.Close()
	svc := env.postbackService(acmeSnapshot(testPartner(1, server.URL)))
	if err := env.db.Migrator().DropTable(&models.EarningRecord{}); err != nil {
		t.Fatalf("drop earnings failed: %v", err)
	}

	_, err := svc.Receive(context.Background(), ReceiveInput{ProviderCode: "acme", Params: acmeParams("alice", "T1")})
	if !errors.Is(err, ErrSettlementWriteFailed) {
		t.Fatalf("expected settlement failure, got %v", err)
	}
	if recorder.count() != 0 {
		t.Fatalf("settlement failure should not forward")
	}
	if incoming := env.listLogs(t, constants.PostbackDirectionIncoming); len(incoming) != 1 || incoming[0].ErrorMessage == "" {
		t.Fatalf("expected one failed incoming log: %+v", incoming)
	}
}

func TestReceiveRegistryFailure(t *testing.T) {
	env := newRelayTestEnv(t, "receive_registry_fail", true)
	svc := NewPostbackService(failingRegistry{}, NewIdentityResolver(env.ledgerRepo), env.settlement, env.forwarder, env.audit, nil, nil)

	if _, err := svc.Receive(context.Background(), ReceiveInput{ProviderCode: "acme"}); !errors.Is(err, ErrRegistryLoadFailed) {
		t.Fatalf("expected registry failure, got %v", err)
	}
	if incoming := env.listLogs(t, constants.PostbackDirectionIncoming); len(incoming) != 1 {
		t.Fatalf("registry failure should be audited once, got %d", len(incoming))
	}
}

func TestReceiveMalformedBodyRecordedOnAudit(t *testing.T) {
	env := newRelayTestEnv(t, "receive_malformed", true)
	alice := env.createProfile(t, models.LedgerProfile{Username: "alice"})
	svc := env.postbackService(acmeSnapshot())

	params := acmeParams("alice", "T1")
	bodyErr := params.MergeBody("application/json", []byte(`{"uid":`))
	result, err := svc.Receive(context.Background(), ReceiveInput{ProviderCode: "acme", Params: params, BodyError: bodyErr})
	if err != nil || result.Status != constants.ReceiveStatusOK {
		t.Fatalf("query params should still settle: %+v err=%v", result, err)
	}
	if got := env.reloadProfile(t, alice.ID); got.Points != 5 {
		t.Fatalf("points want 5 got %d", got.Points)
	}
	incoming := env.listLogs(t, constants.PostbackDirectionIncoming)
	if len(incoming) != 1 || incoming[0].ErrorMessage == "" {
		t.Fatalf("body error should be audited: %+v", incoming)
	}
}

func TestRegistryLoaderWithoutCache(t *testing.T) {
	env := newRelayTestEnv(t, "registry_loader", true)
	if err := models.SeedDemoData(env.db, models.DefaultDemoSeed()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	inactive := models.DownstreamPartner{Name: "off", URL: "http://127.0.0.1:1/cb"}
	if err := env.db.Create(&inactive).Error; err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	loader := NewRegistryLoader(repository.NewPostbackRegistryRepository(env.db), 0)

	snapshot, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := ResolveProvider(snapshot, "acme"); err != nil {
		t.Fatalf("seeded provider should resolve: %v", err)
	}
	for _, partner := range snapshot.Partners {
		if partner.ID == inactive.ID {
			t.Fatalf("inactive partner should not be loaded")
		}
	}
	partner, err := loader.GetPartner(inactive.ID)
	if err != nil || partner == nil || partner.Name != "off" {
		t.Fatalf("get partner should bypass active filter: %+v err=%v", partner, err)
	}

	var nilLoader *RegistryLoader
	if _, err := nilLoader.Load(context.Background()); !errors.Is(err, ErrRegistryLoadFailed) {
		t.Fatalf("nil loader should fail, got %v", err)
	}
}
