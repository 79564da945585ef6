package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accountstate/internal/account"
	"accountstate/internal/config"
	"accountstate/internal/metrics"
	"accountstate/internal/model"
	"accountstate/internal/repository"
	"accountstate/pkg/idgen"
	"accountstate/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSystemBusy = errors.New("系统繁忙，请稍后重试")

// Locker 账户维度的互斥锁，同一账户上的变更串行执行
type Locker interface {
	Acquire(ctx context.Context, accountNo, owner string) (release func(), err error)
}

type AccountService struct {
	store   repository.Store
	locker  Locker
	metrics *metrics.Collector
	topic   string
	log     *logger.Logger
	now     func() time.Time
}

func NewAccountService(store repository.Store, locker Locker, m *metrics.Collector, cfg *config.Config) *AccountService {
	return &AccountService{
		store:   store,
		locker:  locker,
		metrics: m,
		topic:   cfg.Kafka.Topic.AccountEvents,
		log:     logger.L().Named("AccountService"),
		now:     time.Now,
	}
}

// OperationResult 一次变更操作后的账户状态
type OperationResult struct {
	AccountNo     string `json:"account_no"`
	Balance       int64  `json:"balance"`
	Status        string `json:"status"`
	TransactionNo string `json:"transaction_no,omitempty"`
	Changed       bool   `json:"changed"`             // 空操作（重复冻结、重复销户等）为 false
	Duplicate     bool   `json:"duplicate,omitempty"` // 命中幂等记录
}

// CreateAccount 开户
func (s *AccountService) CreateAccount(ctx context.Context, initialBalance int64) (*model.Account, error) {
	start := time.Now()
	acct, err := s.createAccount(ctx, initialBalance)
	s.metrics.ObserveOperation("create", err, time.Since(start))
	if err != nil {
		s.logFailure("create", "", initialBalance, err)
		return nil, err
	}
	s.log.Info("开户成功", zap.String("account_no", acct.AccountNo), zap.Int64("balance", acct.Balance))
	return acct, nil
}

func (s *AccountService) createAccount(ctx context.Context, initialBalance int64) (*model.Account, error) {
	acct, err := account.New(idgen.GenerateAccountID(), initialBalance)
	if err != nil {
		return nil, err
	}

	row := &model.Account{
		AccountNo: acct.ID(),
		Balance:   acct.Balance(),
		Status:    string(acct.Status()),
	}
	msg, err := outboxMessage(s.topic, AccountEvent{
		Event:      EventAccountCreated,
		AccountNo:  row.AccountNo,
		Balance:    row.Balance,
		Status:     row.Status,
		OccurredAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateAccount(ctx, row, msg); err != nil {
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}
	return row, nil
}

// GetAccount 查询账户，余额与状态都取自这里
func (s *AccountService) GetAccount(ctx context.Context, accountNo string) (*model.Account, error) {
	return s.store.GetAccount(ctx, accountNo)
}

// Deposit 存款；requestID 非空时同一请求只受理一次
func (s *AccountService) Deposit(ctx context.Context, accountNo string, amount int64, requestID string) (*OperationResult, error) {
	return s.mutate(ctx, operation{
		name:      "deposit",
		event:     EventAccountDeposited,
		txnType:   model.TransactionTypeDeposit,
		amount:    amount,
		requestID: requestID,
		apply: func(a *account.Account) (bool, error) {
			_, err := a.Deposit(amount)
			return err == nil, err
		},
	}, accountNo)
}

// Withdraw 取款；requestID 非空时同一请求只受理一次
func (s *AccountService) Withdraw(ctx context.Context, accountNo string, amount int64, requestID string) (*OperationResult, error) {
	return s.mutate(ctx, operation{
		name:      "withdraw",
		event:     EventAccountWithdrawn,
		txnType:   model.TransactionTypeWithdraw,
		amount:    amount,
		requestID: requestID,
		apply: func(a *account.Account) (bool, error) {
			_, err := a.Withdraw(amount)
			return err == nil, err
		},
	}, accountNo)
}

// Freeze 冻结
func (s *AccountService) Freeze(ctx context.Context, accountNo string) (*OperationResult, error) {
	return s.mutate(ctx, operation{
		name:  "freeze",
		event: EventAccountFrozen,
		apply: func(a *account.Account) (bool, error) { return a.Freeze() },
	}, accountNo)
}

// Unfreeze 解冻
func (s *AccountService) Unfreeze(ctx context.Context, accountNo string) (*OperationResult, error) {
	return s.mutate(ctx, operation{
		name:  "unfreeze",
		event: EventAccountUnfrozen,
		apply: func(a *account.Account) (bool, error) { return a.Unfreeze() },
	}, accountNo)
}

// Close 销户，重复销户不报错
func (s *AccountService) Close(ctx context.Context, accountNo string) (*OperationResult, error) {
	return s.mutate(ctx, operation{
		name:  "close",
		event: EventAccountClosed,
		apply: func(a *account.Account) (bool, error) { return a.Close(), nil },
	}, accountNo)
}

// History 分页查询流水，按受理顺序排列
func (s *AccountService) History(ctx context.Context, accountNo string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	if _, err := s.store.GetAccount(ctx, accountNo); err != nil {
		return nil, 0, err
	}
	return s.store.ListTransactions(ctx, accountNo, page, pageSize)
}

// operation 一次变更操作的描述
type operation struct {
	name      string
	event     string
	txnType   string // 存取款对应的流水类型，状态迁移为空
	amount    int64
	requestID string
	apply     func(a *account.Account) (changed bool, err error)
}

func (op operation) moneyMovement() bool {
	return op.txnType != ""
}

// signedAmount 流水表中的金额，出账为负
func (op operation) signedAmount() int64 {
	if op.txnType == model.TransactionTypeWithdraw {
		return -op.amount
	}
	return op.amount
}

func (s *AccountService) mutate(ctx context.Context, op operation, accountNo string) (*OperationResult, error) {
	start := time.Now()
	result, transition, err := s.execute(ctx, op, accountNo)
	s.metrics.ObserveOperation(op.name, err, time.Since(start))

	if err != nil {
		s.logFailure(op.name, accountNo, op.amount, err)
		return nil, err
	}
	if transition != nil {
		s.metrics.ObserveTransition(transition.from, transition.to)
	}

	s.log.With(zap.String("op", op.name), zap.String("account_no", accountNo)).Info("账户操作成功",
		zap.Int64("amount", op.amount),
		zap.Int64("balance", result.Balance),
		zap.String("status", result.Status),
		zap.Bool("changed", result.Changed),
		zap.Bool("duplicate", result.Duplicate),
	)
	return result, nil
}

func (s *AccountService) logFailure(op, accountNo string, amount int64, err error) {
	log := s.log.With(zap.String("op", op), zap.String("account_no", accountNo))
	if account.IsRejection(err) || errors.Is(err, repository.ErrAccountNotFound) {
		log.Info("账户操作被拒绝", zap.Int64("amount", amount), zap.Error(err))
		return
	}
	log.Error("账户操作失败", zap.Int64("amount", amount), zap.Error(err))
}

type statusChange struct {
	from, to account.Status
}

// execute 加锁 -> 事务内锁行 -> 重建领域模型 -> 执行 -> 写回余额/状态、流水、事件
// 领域模型拒绝时事务回滚，不产生任何写入
func (s *AccountService) execute(ctx context.Context, op operation, accountNo string) (*OperationResult, *statusChange, error) {
	// 金额校验不需要加锁
	if op.moneyMovement() && op.amount <= 0 {
		return nil, nil, account.ErrInvalidAmount
	}

	// 锁的持有者每次调用唯一，重试的同一请求也不能释放彼此的锁
	owner := uuid.NewString()
	if op.requestID != "" {
		owner = op.requestID + ":" + owner
	}
	release, err := s.locker.Acquire(ctx, accountNo, owner)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	defer release()

	var (
		result     *OperationResult
		transition *statusChange
	)
	err = s.store.Transaction(ctx, func(tx repository.Tx) error {
		row, err := tx.GetAccountForUpdate(ctx, accountNo)
		if err != nil {
			return err
		}

		if op.moneyMovement() && op.requestID != "" {
			existing, err := tx.GetTransactionByRequestID(ctx, op.requestID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.AccountNo != accountNo || existing.Type != op.txnType || existing.Amount != op.signedAmount() {
					return repository.ErrDuplicateRequest
				}
				result = &OperationResult{
					AccountNo:     row.AccountNo,
					Balance:       row.Balance,
					Status:        row.Status,
					TransactionNo: existing.TransactionNo,
					Duplicate:     true,
				}
				return nil
			}
		}

		acct, err := account.Restore(row.AccountNo, row.Balance, account.Status(row.Status), account.WithClock(s.now))
		if err != nil {
			return fmt.Errorf("账户数据异常: %w", err)
		}
		from := acct.Status()

		changed, err := op.apply(acct)
		if err != nil {
			return err
		}

		snap := acct.Snapshot()
		result = &OperationResult{
			AccountNo: snap.ID,
			Balance:   snap.Balance,
			Status:    string(snap.Status),
			Changed:   changed,
		}
		if !changed {
			return nil
		}

		row.Balance = snap.Balance
		row.Status = string(snap.Status)
		if snap.Status == account.StatusClosed && row.ClosedAt == nil {
			now := s.now()
			row.ClosedAt = &now
		}
		if err := tx.UpdateAccount(ctx, row); err != nil {
			return fmt.Errorf("更新账户失败: %w", err)
		}

		ev := AccountEvent{
			Event:      op.event,
			AccountNo:  snap.ID,
			Balance:    snap.Balance,
			Status:     string(snap.Status),
			Amount:     op.amount,
			OccurredAt: s.now(),
		}

		if trans := s.toTransactions(snap.ID, op.requestID, snap.History); len(trans) > 0 {
			if err := tx.AddTransactions(ctx, trans...); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
			result.TransactionNo = trans[len(trans)-1].TransactionNo
			ev.TransactionNo = result.TransactionNo
		}

		if from != snap.Status {
			ev.PrevStatus = string(from)
			transition = &statusChange{from: from, to: snap.Status}
		}

		msg, err := outboxMessage(s.topic, ev)
		if err != nil {
			return err
		}
		if err := tx.AddOutbox(ctx, msg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, transition, nil
}

// toTransactions 把本次操作产生的领域流水转换为流水表记录
func (s *AccountService) toTransactions(accountNo, requestID string, records []account.Record) []*model.AccountTransaction {
	out := make([]*model.AccountTransaction, 0, len(records))
	for _, r := range records {
		amount := r.Amount
		if r.Kind == account.KindWithdraw {
			amount = -amount
		}
		t := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountNo:     accountNo,
			Amount:        amount,
			Type:          string(r.Kind),
			BalanceBefore: r.BalanceBefore,
			BalanceAfter:  r.BalanceAfter,
			CreatedAt:     r.CreatedAt,
		}
		if requestID != "" {
			id := requestID
			t.RequestID = &id
		}
		out = append(out, t)
	}
	return out
}
