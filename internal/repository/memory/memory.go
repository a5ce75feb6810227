// Package memory 提供 repository.Store 的进程内实现，
// 供单元测试和单机开发使用，语义与 gorm 实现对齐：
// WithinTx 以全局互斥串行化工作单元，fn 报错时整体回滚
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledgerpay/internal/model"
	"ledgerpay/internal/repository"
)

var ErrDuplicateAccountRef = errors.New("账户引用已存在")

type Store struct {
	mu   sync.RWMutex // 保护数据
	txMu sync.Mutex   // 串行化工作单元（不支持嵌套 WithinTx）

	nextID       int64
	accounts     map[string]*model.Account     // key: account_ref
	transactions map[string]*model.Transaction // key: reference
	entries      []*model.LedgerEntry
	outbox       []*model.OutboxEvent
	sagas        map[string]*model.Saga
}

func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*model.Account),
		transactions: make(map[string]*model.Transaction),
		sagas:        make(map[string]*model.Saga),
	}
}

func (s *Store) Accounts() repository.AccountStore         { return &accountStore{s} }
func (s *Store) Transactions() repository.TransactionStore { return &transactionStore{s} }
func (s *Store) Entries() repository.LedgerEntryStore      { return &entryStore{s} }
func (s *Store) Outbox() repository.OutboxStore            { return &outboxStore{s} }
func (s *Store) Sagas() repository.SagaStore               { return &sagaStore{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	nextID       int64
	accounts     map[string]*model.Account
	transactions map[string]*model.Transaction
	entries      []*model.LedgerEntry
	outbox       []*model.OutboxEvent
	sagas        map[string]*model.Saga
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		nextID:       s.nextID,
		accounts:     make(map[string]*model.Account, len(s.accounts)),
		transactions: make(map[string]*model.Transaction, len(s.transactions)),
		entries:      make([]*model.LedgerEntry, len(s.entries)),
		outbox:       make([]*model.OutboxEvent, len(s.outbox)),
		sagas:        make(map[string]*model.Saga, len(s.sagas)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = copyAccount(v)
	}
	for k, v := range s.transactions {
		snap.transactions[k] = copyTransaction(v)
	}
	for i, e := range s.entries {
		snap.entries[i] = copyEntry(e)
	}
	for i, e := range s.outbox {
		snap.outbox[i] = copyOutbox(e)
	}
	for k, v := range s.sagas {
		snap.sagas[k] = copySaga(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID = snap.nextID
	s.accounts = snap.accounts
	s.transactions = snap.transactions
	s.entries = snap.entries
	s.outbox = snap.outbox
	s.sagas = snap.sagas
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func copyAccount(a *model.Account) *model.Account {
	c := *a
	return &c
}

func copyTransaction(t *model.Transaction) *model.Transaction {
	c := *t
	return &c
}

func copyEntry(e *model.LedgerEntry) *model.LedgerEntry {
	c := *e
	return &c
}

func copyOutbox(e *model.OutboxEvent) *model.OutboxEvent {
	c := *e
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

func copySaga(sg *model.Saga) *model.Saga {
	c := *sg
	return &c
}

// ============================================================
// 账户
// ============================================================

type accountStore struct {
	s *Store
}

func (r *accountStore) Create(ctx context.Context, account *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[account.AccountRef]; ok {
		return ErrDuplicateAccountRef
	}
	if account.ID == 0 {
		account.ID = r.s.allocID()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	r.s.accounts[account.AccountRef] = copyAccount(account)
	return nil
}

func (r *accountStore) GetByRef(ctx context.Context, ref string) (*model.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	account, ok := r.s.accounts[ref]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (r *accountStore) GetByRefAndType(ctx context.Context, ref, accountType string) (*model.Account, error) {
	account, err := r.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if account.AccountType != accountType {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}

// GetByRefForUpdate 内存实现下工作单元已被全局互斥串行化，等同普通读取
func (r *accountStore) GetByRefForUpdate(ctx context.Context, ref string) (*model.Account, error) {
	return r.GetByRef(ctx, ref)
}

func (r *accountStore) GetOrCreate(ctx context.Context, ref, accountType, currency string) (*model.Account, error) {
	account, err := r.GetByRef(ctx, ref)
	if err == nil {
		return verifyAccountKind(account, accountType, currency)
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		AccountRef:  ref,
		AccountType: accountType,
		Currency:    currency,
		Balance:     decimal.Zero,
	}
	if err := r.Create(ctx, newAccount); err != nil && !errors.Is(err, ErrDuplicateAccountRef) {
		return nil, err
	}
	account, err = r.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return verifyAccountKind(account, accountType, currency)
}

func verifyAccountKind(account *model.Account, accountType, currency string) (*model.Account, error) {
	if account.AccountType != accountType || account.Currency != currency {
		return nil, repository.ErrAccountKindMismatch
	}
	return account, nil
}

func (r *accountStore) Deduct(ctx context.Context, id int64, amount decimal.Decimal, version int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account := r.findByID(id)
	if account == nil {
		return repository.ErrAccountNotFound
	}
	if account.Balance.LessThan(amount) {
		return repository.ErrInsufficientFunds
	}
	if account.Version != version {
		return repository.ErrOptimisticLock
	}
	account.Balance = account.Balance.Sub(amount)
	account.Version++
	account.UpdatedAt = time.Now()
	return nil
}

func (r *accountStore) Increase(ctx context.Context, id int64, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account := r.findByID(id)
	if account == nil {
		return repository.ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(amount)
	account.Version++
	account.UpdatedAt = time.Now()
	return nil
}

func (r *accountStore) List(ctx context.Context, offset, limit int) ([]*model.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]*model.Account, 0, len(r.s.accounts))
	for _, account := range r.s.accounts {
		all = append(all, copyAccount(account))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// findByID 调用方需持有 s.mu
func (r *accountStore) findByID(id int64) *model.Account {
	for _, account := range r.s.accounts {
		if account.ID == id {
			return account
		}
	}
	return nil
}

// ============================================================
// 交易
// ============================================================

type transactionStore struct {
	s *Store
}

func (r *transactionStore) Create(ctx context.Context, txn *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.transactions[txn.Reference]; ok {
		return repository.ErrDuplicateReference
	}
	if txn.ID == 0 {
		txn.ID = r.s.allocID()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	r.s.transactions[txn.Reference] = copyTransaction(txn)
	return nil
}

func (r *transactionStore) GetByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	txn, ok := r.s.transactions[reference]
	if !ok {
		return nil, nil
	}
	return copyTransaction(txn), nil
}

// ============================================================
// 复式流水
// ============================================================

type entryStore struct {
	s *Store
}

func (r *entryStore) Create(ctx context.Context, entry *model.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == 0 {
		entry.ID = r.s.allocID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.s.entries = append(r.s.entries, copyEntry(entry))
	return nil
}

func (r *entryStore) ListByTransactionID(ctx context.Context, transactionID int64) ([]*model.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var entries []*model.LedgerEntry
	for _, entry := range r.s.entries {
		if entry.TransactionID == transactionID {
			entries = append(entries, copyEntry(entry))
		}
	}
	return entries, nil
}

func (r *entryStore) GetLatestByAccountID(ctx context.Context, accountID int64) (*model.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if r.s.entries[i].AccountID == accountID {
			return copyEntry(r.s.entries[i]), nil
		}
	}
	return nil, nil
}

// ============================================================
// 发件箱
// ============================================================

type outboxStore struct {
	s *Store
}

func (r *outboxStore) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if event.ID == 0 {
		event.ID = r.s.allocID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.s.outbox = append(r.s.outbox, copyOutbox(event))
	return nil
}

func (r *outboxStore) GetUnprocessed(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var events []*model.OutboxEvent
	for _, event := range r.s.outbox {
		if event.ProcessedAt == nil {
			events = append(events, copyOutbox(event))
			if limit > 0 && len(events) == limit {
				break
			}
		}
	}
	return events, nil
}

func (r *outboxStore) MarkProcessed(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, event := range r.s.outbox {
		if event.ID == id && event.ProcessedAt == nil {
			event.MarkProcessed()
			return nil
		}
	}
	return nil
}

// ============================================================
// Saga（预留）
// ============================================================

type sagaStore struct {
	s *Store
}

func (r *sagaStore) Create(ctx context.Context, saga *model.Saga) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if saga.ID == 0 {
		saga.ID = r.s.allocID()
	}
	r.s.sagas[saga.SagaID] = copySaga(saga)
	return nil
}

func (r *sagaStore) GetBySagaID(ctx context.Context, sagaID string) (*model.Saga, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	saga, ok := r.s.sagas[sagaID]
	if !ok {
		return nil, nil
	}
	return copySaga(saga), nil
}

func (r *sagaStore) UpdateStatus(ctx context.Context, sagaID, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return repository.ErrSagaStatusInvalid
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	saga, ok := r.s.sagas[sagaID]
	if !ok || saga.Status != fromStatus {
		return repository.ErrSagaStatusInvalid
	}
	saga.Status = toStatus
	return nil
}
