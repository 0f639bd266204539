package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/postback-relay/internal/config"
	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/models"
	"github.com/postback-relay/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPublicTestHandler(t *testing.T, name string) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	acme := models.PostbackProvider{
		Kind:         constants.ProviderKindOfferwall,
		Code:         "acme",
		Name:         "Acme",
		UsernameKey:  "uid",
		StatusKey:    "st",
		PayoutKey:    "amt",
		TxnKey:       "tid",
		SuccessValue: "1",
		PayoutUnit:   constants.PayoutUnitPoints,
		Percentage:   models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		IsActive:     true,
	}
	if err := db.Create(&acme).Error; err != nil {
		t.Fatalf("create provider failed: %v", err)
	}
	if err := db.Create(&models.LedgerProfile{Username: "alice"}).Error; err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	cfg := &config.Config{Postback: config.PostbackConfig{DedupeEnabled: true}}
	return New(newTestContainer(cfg, db)), db
}

func newTestContainer(cfg *config.Config, db *gorm.DB) *provider.Container {
	return provider.NewContainerWithDB(cfg, db, nil, nil)
}

func newPostbackEngine(h *Handler) *gin.Engine {
	r := gin.New()
	r.Any("/receive-postback/:code", h.ReceivePostback)
	return r
}

func decodeReceive(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return body
}

func alicePoints(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var profile models.LedgerProfile
	if err := db.Where("username = ?", "alice").First(&profile).Error; err != nil {
		t.Fatalf("load profile failed: %v", err)
	}
	return profile.Points
}

func TestReceivePostbackQuery(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_query")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receive-postback/acme?uid=alice&st=1&amt=10&tid=T1", nil)
	newPostbackEngine(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	body := decodeReceive(t, w)
	if body["status"] != "ok" || body["normalized_status"] != "success" || body["payout"] != float64(5) || body["forwarded_to"] != float64(0) {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, ok := body["error"]; ok {
		t.Fatalf("success body should not carry error: %+v", body)
	}
	if points := alicePoints(t, db); points != 5 {
		t.Fatalf("points want 5 got %d", points)
	}
}

func TestReceivePostbackJSONBodyOverridesQuery(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_json")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive-postback/acme?uid=nobody&st=0", strings.NewReader(`{"uid":"alice","st":1,"amt":"20","tid":"J1"}`))
	req.Header.Set("Content-Type", "application/json")
	newPostbackEngine(h).ServeHTTP(w, req)

	body := decodeReceive(t, w)
	if w.Code != http.StatusOK || body["status"] != "ok" || body["payout"] != float64(10) {
		t.Fatalf("unexpected response %d: %+v", w.Code, body)
	}
	if points := alicePoints(t, db); points != 10 {
		t.Fatalf("points want 10 got %d", points)
	}
}

func TestReceivePostbackFormBody(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_form")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive-postback/acme", strings.NewReader("uid=alice&st=1&amt=4&tid=F1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	newPostbackEngine(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if points := alicePoints(t, db); points != 2 {
		t.Fatalf("points want 2 got %d", points)
	}
}

func TestReceivePostbackMalformedBodyFallsBackToQuery(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_malformed")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive-postback/acme?uid=alice&st=1&amt=10&tid=M1", strings.NewReader(`{"uid":`))
	req.Header.Set("Content-Type", "application/json")
	newPostbackEngine(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if points := alicePoints(t, db); points != 5 {
		t.Fatalf("points want 5 got %d", points)
	}
}

func TestReceivePostbackUnknownProvider(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_unknown")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receive-postback/ghost?uid=alice&st=1&amt=10", nil)
	newPostbackEngine(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decodeReceive(t, w); body["error"] == "" || body["error"] == nil {
		t.Fatalf("expected error body: %+v", body)
	}
	var count int64
	if err := db.Model(&models.PostbackLog{}).Where("direction = ? AND status = ?", constants.PostbackDirectionIncoming, constants.PostbackStatusFailed).Count(&count).Error; err != nil {
		t.Fatalf("count logs failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one failed incoming log, got %d", count)
	}
}

func TestReceivePostbackUserNotFound(t *testing.T) {
	h, _ := setupPublicTestHandler(t, "public_receive_no_user")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receive-postback/acme?uid=ghost&st=1&amt=10&tid=U1", nil)
	newPostbackEngine(h).ServeHTTP(w, req)

	body := decodeReceive(t, w)
	if w.Code != http.StatusOK || body["status"] != "error" || body["error"] != "user not found" || body["forwarded_to"] != float64(0) {
		t.Fatalf("unexpected response %d: %+v", w.Code, body)
	}
}

func TestReceivePostbackSettlementFailure(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_500")
	if err := db.Migrator().DropTable(&models.EarningRecord{}); err != nil {
		t.Fatalf("drop table failed: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receive-postback/acme?uid=alice&st=1&amt=10&tid=E1", nil)
	newPostbackEngine(h).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := decodeReceive(t, w); body["error"] != "internal server error" {
		t.Fatalf("expected generic error body: %+v", body)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := setupPublicTestHandler(t, "public_healthz")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.Healthz(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d body=%s", w.Code, w.Body.String())
	}

	empty := New(&provider.Container{})
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	empty.Healthz(c)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("missing database should be unhealthy, got %d", w.Code)
	}
}

func TestReceivePostbackGetIgnoresBody(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_receive_get_body")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receive-postback/acme?uid=alice&st=1&amt=10&tid=G1", strings.NewReader(`{"amt":"40"}`))
	req.Header.Set("Content-Type", "application/json")
	newPostbackEngine(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if points := alicePoints(t, db); points != 5 {
		t.Fatalf("GET body must not override query, points want 5 got %d", points)
	}
}

func TestRejectRateLimitedPostbackRecordsAudit(t *testing.T) {
	h, db := setupPublicTestHandler(t, "public_rate_limited")
	r := gin.New()
	r.POST("/receive-postback/:code", func(c *gin.Context) {
		h.RejectRateLimitedPostback(c, 30)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receive-postback/acme?uid=alice", strings.NewReader("st=1&amt=10&tid=RL1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected 429 with Retry-After, got %d %q", w.Code, w.Header().Get("Retry-After"))
	}
	var logs []models.PostbackLog
	if err := db.Where("direction = ?", constants.PostbackDirectionIncoming).Find(&logs).Error; err != nil {
		t.Fatalf("load logs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one incoming log, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != constants.PostbackStatusFailed || entry.ErrorMessage != "rate limited" || entry.ProviderCode != "acme" {
		t.Fatalf("unexpected log: %+v", entry)
	}
	if entry.RawParams["uid"] != "alice" || entry.RawParams["tid"] != "RL1" {
		t.Fatalf("raw params not recorded: %+v", entry.RawParams)
	}
	if points := alicePoints(t, db); points != 0 {
		t.Fatalf("rate limited postback must not settle, points=%d", points)
	}
}
