package models

import (
	"errors"

	"github.com/postback-relay/internal/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DemoSeed 本地联调用的示例数据
type DemoSeed struct {
	Providers []PostbackProvider
	Partners  []DownstreamPartner
	Profiles  []LedgerProfile
}

// DefaultDemoSeed 返回默认示例数据
func DefaultDemoSeed() DemoSeed {
	return DemoSeed{
		Providers: []PostbackProvider{
			{
				Kind:         "offerwall",
				Code:         "acme",
				Name:         "Acme Offerwall",
				UsernameKey:  "uid",
				StatusKey:    "st",
				PayoutKey:    "amt",
				TxnKey:       "tid",
				OfferKey:     "oid",
				SuccessValue: "1",
				PayoutUnit:   "points",
				Percentage:   NewMoneyFromDecimal(decimal.NewFromInt(50)),
				IsActive:     true,
			},
			{
				Kind:         "survey",
				Code:         "pollster",
				Name:         "Pollster Surveys",
				UsernameKey:  "user",
				StatusKey:    "status",
				PayoutKey:    "reward",
				TxnKey:       "trans_id",
				SuccessValue: "complete",
				PayoutUnit:   "cash",
				Percentage:   NewMoneyFromDecimal(decimal.NewFromInt(100)),
				IsActive:     true,
			},
		},
		Partners: []DownstreamPartner{
			{
				Name:          "Local Echo",
				URL:           "http://127.0.0.1:9090/postback?source=relay",
				UsernameParam: "sub_id",
				StatusParam:   "status",
				PayoutParam:   "payout",
				TxnParam:      "txn",
				OfferParam:    "network",
				Method:        "GET",
				ExtraParams:   StringMap{"token": "demo"},
				IsActive:      true,
			},
		},
		Profiles: []LedgerProfile{
			{Username: "alice"},
			{Username: "bob"},
		},
	}
}

// SeedDemoData 写入示例数据，已存在的记录跳过
func SeedDemoData(db *gorm.DB, seed DemoSeed) error {
	if db == nil {
		return errors.New("db is nil")
	}
	for i := range seed.Providers {
		item := seed.Providers[i]
		var existing PostbackProvider
		err := db.Where("kind = ? AND code = ?", item.Kind, item.Code).First(&existing).Error
		if err == nil {
			logger.Infow("seed_provider_exists", "code", item.Code, "kind", item.Kind)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&item).Error; err != nil {
			return err
		}
		logger.Infow("seed_provider_created", "code", item.Code, "kind", item.Kind)
	}
	for i := range seed.Partners {
		item := seed.Partners[i]
		var count int64
		if err := db.Model(&DownstreamPartner{}).Where("name = ?", item.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			logger.Infow("seed_partner_exists", "name", item.Name)
			continue
		}
		if err := db.Create(&item).Error; err != nil {
			return err
		}
		logger.Infow("seed_partner_created", "name", item.Name, "partner_id", item.ID)
	}
	for i := range seed.Profiles {
		item := seed.Profiles[i]
		var count int64
		if err := db.Model(&LedgerProfile{}).Where("username = ?", item.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			logger.Infow("seed_profile_exists", "username", item.Username)
			continue
		}
		if err := db.Create(&item).Error; err != nil {
			return err
		}
		logger.Infow("seed_profile_created", "username", item.Username, "profile_id", item.ID)
	}
	return nil
}
