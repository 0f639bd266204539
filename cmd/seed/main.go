package main

import (
	"context"
	"time"

	"github.com/postback-relay/internal/cache"
	"github.com/postback-relay/internal/config"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/models"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Server.Mode == "debug"); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDemoData(models.DB, models.DefaultDemoSeed()); err != nil {
		stdLog.Fatalf("Failed to seed demo data: %v", err)
	}

	// 清掉旧的配置快照，运行中的实例下次请求即读到新配置
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		stdLog.Printf("Skip registry cache invalidation: %v", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cache.DelRegistryState(ctx); err != nil {
			stdLog.Printf("Registry cache invalidation failed: %v", err)
		}
		cancel()
	}
	_ = cache.Close()
	stdLog.Printf("Seed data ready")
}
