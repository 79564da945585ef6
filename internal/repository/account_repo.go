package repository

import (
	"context"
	"errors"

	"accountstate/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrDuplicateAccount = errors.New("账号已存在")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	ErrDuplicateRequest = errors.New("重复请求")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateAccount
	}
	return err
}

func (r *AccountRepository) GetByAccountNo(ctx context.Context, accountNo string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_no = ?", accountNo).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByAccountNoForUpdate(ctx context.Context, tx *gorm.DB, accountNo string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_no = ?", accountNo).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Update 按版本号写回余额与状态，成功后 account.Version 自增
func (r *AccountRepository) Update(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_no = ? AND version = ?", account.AccountNo, account.Version).
		Updates(map[string]interface{}{
			"balance":   account.Balance,
			"status":    account.Status,
			"closed_at": account.ClosedAt,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByAccountNo(ctx, account.AccountNo); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	account.Version++
	return nil
}
