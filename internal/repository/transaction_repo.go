package repository

import (
	"context"
	"errors"

	"accountstate/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans ...*model.AccountTransaction) error {
	if len(trans) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(trans).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRequest
	}
	return err
}

// GetByRequestID 不存在时返回 nil, nil
func (r *TransactionRepository) GetByRequestID(ctx context.Context, tx *gorm.DB, requestID string) (*model.AccountTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.AccountTransaction
	err := tx.WithContext(ctx).Where("request_id = ?", requestID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListByAccountNo 按受理顺序（旧 -> 新）分页
func (r *TransactionRepository) ListByAccountNo(ctx context.Context, accountNo string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountTransaction{}).Where("account_no = ?", accountNo)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
