package repository

import (
	"context"

	"accountstate/internal/model"

	"gorm.io/gorm"
)

// Store 账户服务所需的持久化能力
type Store interface {
	// CreateAccount 在同一事务内写入账户和开户事件
	CreateAccount(ctx context.Context, account *model.Account, event *model.OutboxMessage) error
	GetAccount(ctx context.Context, accountNo string) (*model.Account, error)
	ListTransactions(ctx context.Context, accountNo string, page, pageSize int) ([]*model.AccountTransaction, int64, error)
	// Transaction fn 返回错误时整体回滚
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx 单个数据库事务内可用的操作
type Tx interface {
	GetAccountForUpdate(ctx context.Context, accountNo string) (*model.Account, error)
	GetTransactionByRequestID(ctx context.Context, requestID string) (*model.AccountTransaction, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
	AddTransactions(ctx context.Context, trans ...*model.AccountTransaction) error
	AddOutbox(ctx context.Context, msg *model.OutboxMessage) error
}

// GormStore 基于 gorm 的 Store 实现
type GormStore struct {
	db              *gorm.DB
	accountRepo     *AccountRepository
	transactionRepo *TransactionRepository
	outboxRepo      *OutboxRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:              db,
		accountRepo:     NewAccountRepository(db),
		transactionRepo: NewTransactionRepository(db),
		outboxRepo:      NewOutboxRepository(db),
	}
}

func (s *GormStore) CreateAccount(ctx context.Context, account *model.Account, event *model.OutboxMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Create(ctx, tx, account); err != nil {
			return err
		}
		return s.outboxRepo.Create(ctx, tx, event)
	})
}

func (s *GormStore) GetAccount(ctx context.Context, accountNo string) (*model.Account, error) {
	return s.accountRepo.GetByAccountNo(ctx, accountNo)
}

func (s *GormStore) ListTransactions(ctx context.Context, accountNo string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	return s.transactionRepo.ListByAccountNo(ctx, accountNo, page, pageSize)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx, store: s})
	})
}

type gormTx struct {
	tx    *gorm.DB
	store *GormStore
}

func (t *gormTx) GetAccountForUpdate(ctx context.Context, accountNo string) (*model.Account, error) {
	return t.store.accountRepo.GetByAccountNoForUpdate(ctx, t.tx, accountNo)
}

func (t *gormTx) GetTransactionByRequestID(ctx context.Context, requestID string) (*model.AccountTransaction, error) {
	return t.store.transactionRepo.GetByRequestID(ctx, t.tx, requestID)
}

func (t *gormTx) UpdateAccount(ctx context.Context, account *model.Account) error {
	return t.store.accountRepo.Update(ctx, t.tx, account)
}

func (t *gormTx) AddTransactions(ctx context.Context, trans ...*model.AccountTransaction) error {
	return t.store.transactionRepo.Create(ctx, t.tx, trans...)
}

func (t *gormTx) AddOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return t.store.outboxRepo.Create(ctx, t.tx, msg)
}
