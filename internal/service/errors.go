package service

import "errors"

// 回调中继错误
var (
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrUserNotFound          = errors.New("user not found")
	ErrMalformedBody         = errors.New("malformed postback body")
	ErrDuplicatePostback     = errors.New("duplicate postback")
	ErrSettlementWriteFailed = errors.New("settlement write failed")
	ErrRegistryLoadFailed    = errors.New("postback registry load failed")
	ErrPartnerNotFound       = errors.New("partner not found")
	ErrPartnerDeliveryFailed = errors.New("partner delivery failed")
	ErrForwardURLInvalid     = errors.New("invalid forward url")
	ErrTestPostbackInvalid   = errors.New("invalid test postback input")
)

// 运维鉴权错误
var (
	ErrOperatorTokenInvalid = errors.New("invalid operator token")
	ErrOperatorNameRequired = errors.New("operator name required")
)
