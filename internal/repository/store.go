package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"ledgerpay/internal/model"
)

var (
	ErrAccountNotFound     = errors.New("账户不存在")
	ErrAccountKindMismatch = errors.New("账户引用已被不同类型或币种的账户占用")
	ErrInsufficientFunds   = errors.New("余额不足")
	ErrOptimisticLock      = errors.New("乐观锁冲突，请重试")
	ErrDuplicateReference  = errors.New("交易引用已存在")
)

// AccountStore 账户存储
type AccountStore interface {
	Create(ctx context.Context, account *model.Account) error
	GetByRef(ctx context.Context, ref string) (*model.Account, error)
	GetByRefAndType(ctx context.Context, ref, accountType string) (*model.Account, error)
	// GetByRefForUpdate 以排他行锁读取账户，锁持有到所在工作单元提交或回滚
	GetByRefForUpdate(ctx context.Context, ref string) (*model.Account, error)
	// GetOrCreate 按引用取账户，不存在时创建（并发创建时以先落库者为准）。
	// 引用已被不同类型或币种的账户占用时返回 ErrAccountKindMismatch
	GetOrCreate(ctx context.Context, ref, accountType, currency string) (*model.Account, error)
	// Deduct 扣减余额，带余额充足与版本号双重校验
	Deduct(ctx context.Context, id int64, amount decimal.Decimal, version int) error
	// Increase 原子增加余额（amount 可为负，用于外部账户的无下限出账）
	Increase(ctx context.Context, id int64, amount decimal.Decimal) error
	List(ctx context.Context, offset, limit int) ([]*model.Account, error)
}

// TransactionStore 交易存储
type TransactionStore interface {
	// Create 落库新交易，reference 重复时返回 ErrDuplicateReference
	Create(ctx context.Context, txn *model.Transaction) error
	// GetByReference 按幂等引用查交易，不存在时返回 (nil, nil)
	GetByReference(ctx context.Context, reference string) (*model.Transaction, error)
}

// LedgerEntryStore 复式流水存储，只追加
type LedgerEntryStore interface {
	Create(ctx context.Context, entry *model.LedgerEntry) error
	ListByTransactionID(ctx context.Context, transactionID int64) ([]*model.LedgerEntry, error)
	// GetLatestByAccountID 取账户最新一条流水（权威余额），不存在时返回 (nil, nil)
	GetLatestByAccountID(ctx context.Context, accountID int64) (*model.LedgerEntry, error)
}

// OutboxStore 发件箱存储
type OutboxStore interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	// GetUnprocessed 按创建时间升序取待发送事件
	GetUnprocessed(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// SagaStore saga 数据形态的最小存储（预留，核心流程不使用）
type SagaStore interface {
	Create(ctx context.Context, saga *model.Saga) error
	GetBySagaID(ctx context.Context, sagaID string) (*model.Saga, error)
	UpdateStatus(ctx context.Context, sagaID, fromStatus, toStatus string) error
}

// Store 聚合所有存储
// WithinTx 在一个原子工作单元内执行 fn：fn 返回错误时全部回滚，
// 账本效果（交易、两条流水、发件箱记录）要么同时可见要么都不可见
type Store interface {
	Accounts() AccountStore
	Transactions() TransactionStore
	Entries() LedgerEntryStore
	Outbox() OutboxStore
	Sagas() SagaStore
	WithinTx(ctx context.Context, fn func(Store) error) error
}
