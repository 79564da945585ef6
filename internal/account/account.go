// Package account 定义单个银行账户的领域模型：余额、状态机与只追加的流水日志。
//
// 金额以 int64 最小货币单位（分）保存。每个 Account 持有一把互斥锁，
// "先检查余额再扣减"在锁内完成，保证并发调用下余额不会为负。
// 任何失败都不会改变余额、状态或流水。
package account

import (
	"math"
	"sync"
	"time"
)

// Account 银行账户聚合
type Account struct {
	mu      sync.Mutex
	id      string
	balance int64
	status  Status
	journal journal
	now     func() time.Time
}

// Option 账户构造选项
type Option func(*Account)

// WithClock 指定流水时间来源
func WithClock(now func() time.Time) Option {
	return func(a *Account) {
		a.now = now
	}
}

// New 开户：初始余额不得为负，初始状态为 ACTIVE
func New(id string, initialBalance int64, opts ...Option) (*Account, error) {
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}
	return build(id, initialBalance, StatusActive, opts), nil
}

// Restore 从持久化数据重建账户，流水日志从空开始
func Restore(id string, balance int64, status Status, opts ...Option) (*Account, error) {
	if balance < 0 {
		return nil, ErrInvalidAmount
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return build(id, balance, status, opts), nil
}

func build(id string, balance int64, status Status, opts []Option) *Account {
	a := &Account{
		id:      id,
		balance: balance,
		status:  status,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Account) ID() string {
	return a.id
}

// Balance 当前余额
func (a *Account) Balance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Status 当前状态
func (a *Account) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Account) handler() state {
	return handlers[a.status]
}

// Deposit 存款，ACTIVE 和 FROZEN 均允许，入账后余额不得超出 int64
func (a *Account) Deposit(amount int64) (Record, error) {
	if amount <= 0 {
		return Record{}, ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.handler().deposit(); err != nil {
		return Record{}, err
	}
	if amount > math.MaxInt64-a.balance {
		return Record{}, ErrBalanceOverflow
	}
	return a.apply(KindDeposit, amount, a.balance+amount), nil
}

// Withdraw 取款，仅 ACTIVE 允许，且不得超过余额
func (a *Account) Withdraw(amount int64) (Record, error) {
	if amount <= 0 {
		return Record{}, ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.handler().withdraw(); err != nil {
		return Record{}, err
	}
	if amount > a.balance {
		return Record{}, ErrInsufficientFunds
	}
	return a.apply(KindWithdraw, amount, a.balance-amount), nil
}

// apply 余额与流水在同一临界区内一起更新，调用方必须持有锁
func (a *Account) apply(kind Kind, amount, after int64) Record {
	r := Record{
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: a.balance,
		BalanceAfter:  after,
		CreatedAt:     a.now(),
	}
	a.balance = after
	a.journal.append(r)
	return r
}

// Freeze 冻结：ACTIVE -> FROZEN；已冻结时为空操作。返回状态是否发生变化
func (a *Account) Freeze() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.handler().freeze()
	if err != nil {
		return false, err
	}
	return a.transition(next), nil
}

// Unfreeze 解冻：FROZEN -> ACTIVE；ACTIVE 时为空操作
func (a *Account) Unfreeze() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.handler().unfreeze()
	if err != nil {
		return false, err
	}
	return a.transition(next), nil
}

// Close 销户：任何状态都可调用，重复销户为空操作
func (a *Account) Close() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transition(a.handler().close())
}

func (a *Account) transition(next Status) bool {
	if next == a.status {
		return false
	}
	a.status = next
	return true
}

// History 流水副本，按受理顺序排列
func (a *Account) History() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.journal.copy()
}

// Snapshot 账户在某一时刻的一致视图
type Snapshot struct {
	ID      string   `json:"id"`
	Balance int64    `json:"balance"`
	Status  Status   `json:"status"`
	History []Record `json:"history"`
}

func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		ID:      a.id,
		Balance: a.balance,
		Status:  a.status,
		History: a.journal.copy(),
	}
}
