package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EntryTypeDebit  = "DEBIT"  // 借记（出账）
	EntryTypeCredit = "CREDIT" // 贷记（入账）
)

// LedgerEntry 复式记账流水表
// 每笔交易恰好两条流水：一条 DEBIT 一条 CREDIT，金额相等
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每条流水记录交易前后余额 —— balance_after 是账户的权威余额
// 3. 金额恒为正数，方向由 entry_type 表达
type LedgerEntry struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID int64           `gorm:"index;not null" json:"transaction_id"`
	AccountID     int64           `gorm:"index;not null" json:"account_id"`
	EntryType     string          `gorm:"type:varchar(10);not null" json:"entry_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(19,4);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
