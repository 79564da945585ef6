package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit  = "DEPOSIT"  // 存款
	TransactionTypeWithdraw = "WITHDRAW" // 取款
)

// ============================================================================
// 账户流水实体
// ============================================================================

// AccountTransaction 账户流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除
// 2. 记录交易前后余额，对账时逐笔校验
// 3. 带 request_id 的流水用于存取款幂等
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	AccountNo     string    `gorm:"type:varchar(32);index;not null" json:"account_no"`           // 账号
	RequestID     *string   `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`    // 幂等ID，可为空
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 交易类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
