package constants

// 上游提供方类型（同一个 code 命名空间，按顺序匹配）
const (
	ProviderKindOfferwall = "offerwall"
	ProviderKindSurvey    = "survey"
)

// 奖励发放单位
const (
	PayoutUnitPoints = "points"
	PayoutUnitCash   = "cash"
)

// 归一化后的回调状态
const (
	PostbackStatusSuccess  = "success"
	PostbackStatusReversed = "reversed"
	PostbackStatusFailed   = "failed"
)

// 下游转发时的状态编码
const (
	ForwardStatusCodeSuccess  = "1"
	ForwardStatusCodeReversed = "2"
	ForwardStatusCodeFailed   = "0"
)

// 收益流水状态
const (
	EarningStatusApproved = "approved"
	EarningStatusReversed = "reversed"
)

// 点击记录完成状态
const (
	ClickStatusClicked   = "clicked"
	ClickStatusCompleted = "completed"
	ClickStatusReversed  = "reversed"
)

// 审计日志方向
const (
	PostbackDirectionIncoming = "incoming"
	PostbackDirectionOutgoing = "outgoing"
)

// 入站响应状态
const (
	ReceiveStatusOK        = "ok"
	ReceiveStatusError     = "error"
	ReceiveStatusDuplicate = "duplicate"
)

// 队列与任务
const (
	QueueDefault  = "default"
	QueuePostback = "postback"

	TaskPostbackForwardRetry = "postback:forward_retry"
)

// 默认值
const (
	DefaultForwardMethod         = "GET"
	DefaultForwardTimeoutSeconds = 8
	DefaultResponseBodyLimit     = 500
	DefaultProviderPercentage    = 100
	TestTxnIDPrefix              = "test_"
)
