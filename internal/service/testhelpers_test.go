package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/queue"
	"github.com/postback-relay/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type relayTestEnv struct {
	db         *gorm.DB
	ledgerRepo *repository.GormLedgerRepository
	logRepo    *repository.GormPostbackLogRepository
	audit      *AuditService
	settlement *SettlementService
	forwarder  *ForwarderService
	retry      *retryEnqueuerStub
}

type retryEnqueuerStub struct {
	payloads []queue.ForwardRetryPayload
}

func (s *retryEnqueuerStub) EnqueuePostbackForwardRetry(payload queue.ForwardRetryPayload) error {
	s.payloads = append(s.payloads, payload)
	return nil
}

type partnerLookupStub struct {
	partners map[uint]*models.DownstreamPartner
}

func (s partnerLookupStub) GetPartner(id uint) (*models.DownstreamPartner, error) {
	return s.partners[id], nil
}

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 转发并发写审计日志，内存库单连接串行化
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newRelayTestEnv(t *testing.T, name string, dedupe bool) *relayTestEnv {
	t.Helper()
	db := setupServiceTestDB(t, name)
	ledgerRepo := repository.NewLedgerRepository(db)
	logRepo := repository.NewPostbackLogRepository(db)
	receiptRepo := repository.NewPostbackReceiptRepository(db)
	audit := NewAuditService(logRepo, nil, constants.DefaultResponseBodyLimit)
	retry := &retryEnqueuerStub{}
	return &relayTestEnv{
		db:         db,
		ledgerRepo: ledgerRepo,
		logRepo:    logRepo,
		audit:      audit,
		settlement: NewSettlementService(ledgerRepo, receiptRepo, dedupe),
		forwarder: NewForwarderService(ForwarderOptions{
			Timeout:   2 * time.Second,
			BodyLimit: constants.DefaultResponseBodyLimit,
		}, audit, retry, nil, nil),
		retry: retry,
	}
}

func (e *relayTestEnv) postbackService(snapshot *RegistrySnapshot) *PostbackService {
	return NewPostbackService(
		StaticRegistry{Snapshot: snapshot},
		NewIdentityResolver(e.ledgerRepo),
		e.settlement,
		e.forwarder,
		e.audit,
		nil,
		nil,
	)
}

func (e *relayTestEnv) createProfile(t *testing.T, profile models.LedgerProfile) models.LedgerProfile {
	t.Helper()
	if err := e.db.Create(&profile).Error; err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	return profile
}

func (e *relayTestEnv) reloadProfile(t *testing.T, id string) models.LedgerProfile {
	t.Helper()
	var profile models.LedgerProfile
	if err := e.db.Where("id = ?", id).First(&profile).Error; err != nil {
		t.Fatalf("reload profile failed: %v", err)
	}
	return profile
}

func (e *relayTestEnv) listLogs(t *testing.T, direction string) []models.PostbackLog {
	t.Helper()
	var logs []models.PostbackLog
	if err := e.db.Where("direction = ?", direction).Order("id asc").Find(&logs).Error; err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	return logs
}

func testProvider(code, unit string, percentage int64) models.PostbackProvider {
	return models.PostbackProvider{
		ID:           1,
		Kind:         constants.ProviderKindOfferwall,
		Code:         code,
		Name:         code,
		UsernameKey:  "uid",
		StatusKey:    "st",
		PayoutKey:    "amt",
		TxnKey:       "tid",
		SuccessValue: "1",
		PayoutUnit:   unit,
		Percentage:   models.NewMoneyFromDecimal(decimal.NewFromInt(percentage)),
		IsActive:     true,
	}
}
