package response

// Business codes. The HTTP status carries transport semantics, these carry
// the domain outcome.
const (
	CodeSuccess = 0
	CodeError   = 1

	// Order errors 100xx
	ErrOrderNotFound    = 10001
	ErrUnsupportedRail  = 10002
	ErrInvalidQuantity  = 10003
	ErrPriceUnavailable = 10004

	// Withdrawal errors 200xx
	ErrWithdrawalNotFound  = 20001
	ErrAmountOutOfRange    = 20002
	ErrInsufficientBalance = 20003

	// Auth errors 300xx
	ErrTokenInvalid     = 30001
	ErrSignatureInvalid = 30002

	// System errors 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
