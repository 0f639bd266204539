package router

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	handlershared "github.com/postback-relay/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int

	// OnLimited 命中限流时的响应，为空时返回 429 JSON
	OnLimited func(c *gin.Context, retryAfter int)
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 固定窗口限流
// Redis 不可用时放行：上游回调不可因限流组件故障被丢弃
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Result()
		if err != nil {
			handlershared.RequestLog(c).Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		count, ttlSeconds, ok := parseRateLimitResult(result)
		if !ok {
			handlershared.RequestLog(c).Warnw("rate_limit_result_invalid", "key", key)
			c.Next()
			return
		}
		if count > int64(rule.MaxRequests) {
			wait := retryAfterSeconds(ttlSeconds, rule.WindowSeconds)
			if rule.OnLimited != nil {
				rule.OnLimited(c, wait)
				c.Abort()
				return
			}
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("too many requests, retry after %d seconds", wait),
			})
			return
		}
		c.Next()
	}
}

// KeyByProviderAndIP 按回调来源编码与 IP 限流
func KeyByProviderAndIP(c *gin.Context) string {
	code := strings.ToLower(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return c.ClientIP()
	}
	return fmt.Sprintf("%s|%s", code, c.ClientIP())
}

func parseRateLimitResult(result interface{}) (int64, int64, bool) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, false
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, false
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, true
}

func retryAfterSeconds(ttlSeconds int64, windowSeconds int) int {
	wait := int(ttlSeconds)
	if wait < 1 {
		wait = windowSeconds
	}
	if wait < 1 {
		wait = 1
	}
	return wait
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
