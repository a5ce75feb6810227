package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountTypeExternal   = "EXTERNAL"    // 外部账户（银行通道等），余额允许为负
	AccountTypeUserWallet = "USER_WALLET" // 用户钱包账户
	AccountTypeHold       = "HOLD"        // 资金预留账户，按预留引用懒创建
)

// Account 账户表
// 每个账户以全局唯一的 account_ref 标识。balance 是冗余缓存字段，
// 权威余额是该账户最新一条流水的 balance_after，两者必须在每次提交后一致
type Account struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountRef  string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"account_ref"` // 业务方传入的账户引用
	AccountType string          `gorm:"type:varchar(50);index;not null" json:"account_type"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`
	Balance     decimal.Decimal `gorm:"type:decimal(19,4);not null;default:0" json:"balance"` // 余额缓存，事务内与流水同步更新
	Version     int             `gorm:"not null;default:0" json:"version"`                    // 乐观锁版本号
	Metadata    string          `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
