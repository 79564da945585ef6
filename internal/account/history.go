package account

import "time"

// Kind 流水类型
type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindWithdraw Kind = "WITHDRAW"
)

// Record 一笔已受理的存取款流水，创建后不可修改
type Record struct {
	Kind          Kind      `json:"kind"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// journal 只追加的流水日志，按受理顺序（旧 -> 新）排列
type journal struct {
	records []Record
}

func (l *journal) append(r Record) {
	l.records = append(l.records, r)
}

// copy 返回副本，外部无法改写内部切片
func (l *journal) copy() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
