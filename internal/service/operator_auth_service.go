package service

import (
	"strings"
	"time"

	"github.com/postback-relay/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const operatorTokenIssuer = "postback-relay"

// OperatorAuthService 运维接口鉴权（HS256 JWT）
type OperatorAuthService struct {
	cfg config.JWTConfig
}

// OperatorClaims 运维 JWT 声明
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// NewOperatorAuthService 创建运维鉴权服务
func NewOperatorAuthService(cfg config.JWTConfig) *OperatorAuthService {
	return &OperatorAuthService{cfg: cfg}
}

// GenerateToken 签发运维 Token，ttl 非正数时使用配置的过期小时数
func (s *OperatorAuthService) GenerateToken(operator string, ttl time.Duration) (string, time.Time, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", time.Time{}, ErrOperatorNameRequired
	}
	if ttl <= 0 {
		hours := s.cfg.ExpireHours
		if hours <= 0 {
			hours = 24
		}
		ttl = time.Duration(hours) * time.Hour
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    operatorTokenIssuer,
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken 解析运维 Token
func (s *OperatorAuthService) ParseToken(tokenString string) (*OperatorClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(operatorTokenIssuer),
	)
	token, err := parser.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, ErrOperatorTokenInvalid
	}
	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid && claims.Operator != "" {
		return claims, nil
	}
	return nil, ErrOperatorTokenInvalid
}
