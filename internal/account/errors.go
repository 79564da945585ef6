package account

import "errors"

var (
	ErrInvalidAmount     = errors.New("金额必须大于0")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrAccountFrozen     = errors.New("账户已冻结")
	ErrAccountClosed     = errors.New("账户已销户")
	ErrInvalidStatus     = errors.New("账户状态不合法")
	ErrBalanceOverflow   = errors.New("入账后余额超出上限")
)

// Classify 把错误归类为稳定的标签，用于指标和接口错误码
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAccountFrozen):
		return "account_frozen"
	case errors.Is(err, ErrAccountClosed):
		return "account_closed"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, ErrBalanceOverflow):
		return "balance_overflow"
	default:
		return "other"
	}
}

// IsRejection 判断错误是否为业务规则拒绝（而非基础设施故障）
func IsRejection(err error) bool {
	switch Classify(err) {
	case "none", "other":
		return false
	}
	return true
}
