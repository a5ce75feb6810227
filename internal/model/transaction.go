package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeTransfer = "TRANSFER" // 转账
	TransactionTypeDeposit  = "DEPOSIT"  // 充值（外部账户 -> 用户钱包）
	TransactionTypeHold     = "HOLD"     // 资金预留
	TransactionTypeCapture  = "CAPTURE"  // 预留结算
)

const (
	TransactionStatusCompleted = "COMPLETED"
)

// Transaction 交易表
//
// 【重要】设计原则：
// 1. reference 由调用方生成，全局唯一，是幂等重试的依据
// 2. idempotency_hash 是对操作入参的 SHA-256 指纹，
//    同一 reference 带不同参数重放时据此拒绝
// 3. 交易一经落库不可修改（除 status 外）
type Transaction struct {
	ID              int64           `gorm:"primaryKey" json:"id"` // 雪花ID，服务层生成
	Reference       string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference"`
	Type            string          `gorm:"type:varchar(20);not null" json:"type"`
	IdempotencyHash string          `gorm:"type:varchar(64);not null" json:"-"`
	Amount          decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(20);not null" json:"status"`
	Description     string          `gorm:"type:text" json:"description,omitempty"`
	Metadata        string          `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
