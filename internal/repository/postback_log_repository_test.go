package repository

import (
	"testing"

	"github.com/postback-relay/internal/constants"
	"github.com/postback-relay/internal/models"
)

func TestPostbackLogRepositoryListAdmin(t *testing.T) {
	db := setupRepositoryTestDB(t, "postback_log_list")
	repo := NewPostbackLogRepository(db)
	partnerID := uint(7)

	logs := []models.PostbackLog{
		{
			Direction:    constants.PostbackDirectionIncoming,
			ProviderCode: "acme",
			Username:     "alice",
			TxnID:        "t-1",
			Status:       constants.PostbackStatusSuccess,
			RawParams:    models.JSON{"uid": "alice", "st": "1"},
		},
		{
			Direction:    constants.PostbackDirectionOutgoing,
			ProviderCode: "acme",
			PartnerID:    &partnerID,
			PartnerName:  "p7",
			Username:     "alice",
			TxnID:        "t-1",
			Status:       constants.PostbackStatusSuccess,
			TargetURL:    "http://p7.example/cb?u=alice",
			ResponseCode: 200,
		},
		{
			Direction:    constants.PostbackDirectionIncoming,
			ProviderCode: "ghost",
			Status:       constants.PostbackStatusFailed,
			RawParams:    models.JSON{"uid": "bob"},
			ErrorMessage: "unknown provider",
		},
	}
	for i := range logs {
		if err := repo.Create(&logs[i]); err != nil {
			t.Fatalf("create log %d failed: %v", i, err)
		}
	}

	all, total, err := repo.ListAdmin(PostbackLogListFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if total != 3 || len(all) != 2 {
		t.Fatalf("unexpected paging result total=%d len=%d", total, len(all))
	}
	if all[0].ID != logs[2].ID {
		t.Fatalf("logs should be ordered newest first")
	}

	outgoing, total, err := repo.ListAdmin(PostbackLogListFilter{Direction: constants.PostbackDirectionOutgoing, PartnerID: partnerID})
	if err != nil || total != 1 || outgoing[0].ResponseCode != 200 {
		t.Fatalf("outgoing filter failed: total=%d err=%v", total, err)
	}

	failed, total, err := repo.ListAdmin(PostbackLogListFilter{Status: constants.PostbackStatusFailed})
	if err != nil || total != 1 || failed[0].ProviderCode != "ghost" {
		t.Fatalf("status filter failed: total=%d err=%v", total, err)
	}

	byRaw, total, err := repo.ListAdmin(PostbackLogListFilter{RawKey: "uid", RawValue: "alice"})
	if err != nil {
		t.Fatalf("raw filter failed: %v", err)
	}
	if total != 1 || byRaw[0].ID != logs[0].ID {
		t.Fatalf("raw filter should match first incoming log, total=%d", total)
	}
	if byRaw[0].RawParams["st"] != "1" {
		t.Fatalf("raw params should round trip, got %+v", byRaw[0].RawParams)
	}

	if _, _, err := repo.ListAdmin(PostbackLogListFilter{RawKey: "uid' --"}); err == nil {
		t.Fatalf("unsafe raw key should be rejected")
	}
}
