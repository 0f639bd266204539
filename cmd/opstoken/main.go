package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/postback-relay/internal/config"
	"github.com/postback-relay/internal/logger"
	"github.com/postback-relay/internal/service"
)

// 为运维接口签发 Bearer token
func main() {
	var operator string
	var ttl time.Duration
	flag.StringVar(&operator, "operator", "ops", "运维人员标识")
	flag.DurationVar(&ttl, "ttl", 0, "有效期，默认使用 security.operator_jwt.expire_hours")
	flag.Parse()

	cfg := config.Load()
	logger.Init("debug", cfg.Log.ToLoggerOptions())

	token, expiresAt, err := service.NewOperatorAuthService(cfg.Security.OperatorJWT).GenerateToken(operator, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires_at=%s\n", expiresAt.Format(time.RFC3339))
}
