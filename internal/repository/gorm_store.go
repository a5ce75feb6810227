package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormStore 基于 gorm 的存储聚合
// WithinTx 内返回的 Store 绑定同一个数据库事务，
// 事务内的 GetByRefForUpdate 行锁持有到提交或回滚
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Accounts() AccountStore {
	return NewAccountRepository(s.db)
}

func (s *GormStore) Transactions() TransactionStore {
	return NewTransactionRepository(s.db)
}

func (s *GormStore) Entries() LedgerEntryStore {
	return NewLedgerEntryRepository(s.db)
}

func (s *GormStore) Outbox() OutboxStore {
	return NewOutboxRepository(s.db)
}

func (s *GormStore) Sagas() SagaStore {
	return NewSagaRepository(s.db)
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
