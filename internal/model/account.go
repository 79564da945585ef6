package model

import (
	"time"
)

// Account 账户表
// Balance/Status 只能经由领域模型 account.Account 的操作修改
type Account struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	AccountNo string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"account_no"` // 对外账号
	Balance   int64      `gorm:"not null;default:0" json:"balance"`                       // 余额（分）
	Status    string     `gorm:"type:varchar(16);index;not null" json:"status"`           // ACTIVE / FROZEN / CLOSED
	Version   int        `gorm:"not null;default:0" json:"version"`                       // 乐观锁版本号
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
