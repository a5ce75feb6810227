package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ledgerpay/internal/infrastructure/lock"
	"ledgerpay/internal/model"
	"ledgerpay/internal/observability"
	"ledgerpay/internal/repository"
	"ledgerpay/pkg/idgen"
)

var (
	ErrInvalidAmount       = errors.New("金额必须大于0")
	ErrIdempotencyConflict = errors.New("幂等引用已被不同参数的请求使用")

	// 调用方错误直接复用存储层哨兵，errors.Is 跨层可判
	ErrAccountNotFound     = repository.ErrAccountNotFound
	ErrAccountKindMismatch = repository.ErrAccountKindMismatch
	ErrInsufficientFunds   = repository.ErrInsufficientFunds
)

// LedgerService 账务引擎
// 四个资金操作共用一套骨架：
// 1. 计算幂等指纹  2. 幂等预检  3. 金额校验  4. 按被扣款账户加分布式锁
// 5. 进入数据库事务：再次幂等检查、行锁读取账户、余额校验、
//    落库交易、写两条复式流水、追加发件箱记录  6. 提交
// 步骤 5 内的所有账本效果要么同时持久化要么都不持久化
type LedgerService struct {
	store   repository.Store
	locker  lock.Locker
	metrics observability.Metrics
	logger  zerolog.Logger
}

func NewLedgerService(store repository.Store, locker lock.Locker, metrics observability.Metrics, logger zerolog.Logger) *LedgerService {
	return &LedgerService{
		store:   store,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
	}
}

// Transfer 转账：source 借记，destination 贷记，两个账户必须已存在
func (s *LedgerService) Transfer(ctx context.Context, sourceRef, destRef string, amount decimal.Decimal, reference, description string) (*model.Transaction, error) {
	return s.execute(ctx, operation{
		txnType:     model.TransactionTypeTransfer,
		eventType:   model.EventTypeTransferCompleted,
		fingerprint: []string{sourceRef, destRef, amount.String(), reference},
		reference:   reference,
		amount:      amount,
		description: description,
		debitRef:    sourceRef,
		creditRef:   destRef,
		checkFunds:  true,
		resolve: func(ctx context.Context, st repository.Store) (*model.Account, *model.Account, error) {
			return lockAccountPair(ctx, st, sourceRef, destRef)
		},
	})
}

// Deposit 充值：外部账户借记（允许为负，它代表外部世界），用户钱包贷记
func (s *LedgerService) Deposit(ctx context.Context, externalRef, walletRef string, amount decimal.Decimal, reference, description string) (*model.Transaction, error) {
	return s.execute(ctx, operation{
		txnType:     model.TransactionTypeDeposit,
		eventType:   model.EventTypeDepositCompleted,
		fingerprint: []string{externalRef, walletRef, amount.String(), reference},
		reference:   reference,
		amount:      amount,
		description: description,
		debitRef:    externalRef,
		creditRef:   walletRef,
		checkFunds:  false,
		resolve: func(ctx context.Context, st repository.Store) (*model.Account, *model.Account, error) {
			if _, err := st.Accounts().GetByRefAndType(ctx, externalRef, model.AccountTypeExternal); err != nil {
				return nil, nil, fmt.Errorf("外部账户 %s: %w", externalRef, err)
			}
			if _, err := st.Accounts().GetByRefAndType(ctx, walletRef, model.AccountTypeUserWallet); err != nil {
				return nil, nil, fmt.Errorf("钱包账户 %s: %w", walletRef, err)
			}
			return lockAccountPair(ctx, st, externalRef, walletRef)
		},
	})
}

// Hold 资金预留：付款账户借记，预留账户贷记
// 预留账户按 holdRef 首次使用时懒创建（HOLD 类型，继承付款账户币种），
// 预留本身就是一对普通复式流水，天然可审计
func (s *LedgerService) Hold(ctx context.Context, amount decimal.Decimal, accountRef, holdRef, description, reference string) (*model.Transaction, error) {
	return s.execute(ctx, operation{
		txnType:     model.TransactionTypeHold,
		eventType:   model.EventTypeHoldPlaced,
		fingerprint: []string{accountRef, holdRef, amount.String(), reference},
		reference:   reference,
		amount:      amount,
		description: description,
		debitRef:    accountRef,
		creditRef:   holdRef,
		checkFunds:  true,
		resolve: func(ctx context.Context, st repository.Store) (*model.Account, *model.Account, error) {
			payer, err := st.Accounts().GetByRef(ctx, accountRef)
			if err != nil {
				return nil, nil, fmt.Errorf("付款账户 %s: %w", accountRef, err)
			}
			if _, err := st.Accounts().GetOrCreate(ctx, holdRef, model.AccountTypeHold, payer.Currency); err != nil {
				return nil, nil, fmt.Errorf("创建预留账户失败: %w", err)
			}
			return lockAccountPair(ctx, st, accountRef, holdRef)
		},
	})
}

// CaptureHold 预留结算：预留账户借记，最终收款账户贷记
// 预留账户必须已存在且余额足够
func (s *LedgerService) CaptureHold(ctx context.Context, amount decimal.Decimal, destRef, holdRef, description, reference string) (*model.Transaction, error) {
	return s.execute(ctx, operation{
		txnType:     model.TransactionTypeCapture,
		eventType:   model.EventTypeHoldCaptured,
		fingerprint: []string{holdRef, destRef, amount.String(), reference},
		reference:   reference,
		amount:      amount,
		description: description,
		debitRef:    holdRef,
		creditRef:   destRef,
		checkFunds:  true,
		resolve: func(ctx context.Context, st repository.Store) (*model.Account, *model.Account, error) {
			if _, err := st.Accounts().GetByRefAndType(ctx, holdRef, model.AccountTypeHold); err != nil {
				return nil, nil, fmt.Errorf("预留账户 %s: %w", holdRef, err)
			}
			if _, err := st.Accounts().GetByRef(ctx, destRef); err != nil {
				return nil, nil, fmt.Errorf("收款账户 %s: %w", destRef, err)
			}
			return lockAccountPair(ctx, st, holdRef, destRef)
		},
	})
}

// GetTransaction 按幂等引用查交易，不存在时返回 (nil, nil)
func (s *LedgerService) GetTransaction(ctx context.Context, reference string) (*model.Transaction, error) {
	return s.store.Transactions().GetByReference(ctx, reference)
}

// operation 单次资金操作的描述
// resolve 返回 (借记账户, 贷记账户)，两者都已持有行锁
type operation struct {
	txnType     string
	eventType   string
	fingerprint []string
	reference   string
	amount      decimal.Decimal
	description string
	debitRef    string
	creditRef   string
	checkFunds  bool // 借记方是否要求余额充足（外部账户不要求）
	resolve     func(ctx context.Context, st repository.Store) (*model.Account, *model.Account, error)
}

func (s *LedgerService) execute(ctx context.Context, op operation) (*model.Transaction, error) {
	lg := s.logger.With().
		Str("type", op.txnType).
		Str("reference", op.reference).
		Str("source", op.debitRef).
		Str("destination", op.creditRef).
		Str("amount", op.amount.String()).
		Logger()

	hash := IdempotencyFingerprint(op.fingerprint...)

	// 幂等预检：重放直接返回既有交易，不做任何余额变动
	txn, err := s.checkIdempotent(ctx, s.store.Transactions(), op.reference, hash)
	if err != nil {
		s.metrics.RecordFailure(err.Error())
		return nil, err
	}
	if txn != nil {
		lg.Info().Msg("幂等重放，返回既有交易")
		return txn, nil
	}

	if op.amount.LessThanOrEqual(decimal.Zero) {
		s.metrics.RecordFailure(ErrInvalidAmount.Error())
		return nil, ErrInvalidAmount
	}

	// 对被扣款账户加锁，同一账户的并发扣款在此排队
	release, err := s.locker.Acquire(ctx, op.debitRef)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			lg.Warn().Err(err).Msg("释放账户锁失败")
		}
	}()

	var result *model.Transaction
	err = s.store.WithinTx(ctx, func(st repository.Store) error {
		// 拿到锁后再次幂等检查
		existing, err := s.checkIdempotent(ctx, st.Transactions(), op.reference, hash)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		debitAcct, creditAcct, err := op.resolve(ctx, st)
		if err != nil {
			return err
		}

		if op.checkFunds && debitAcct.Balance.LessThan(op.amount) {
			return repository.ErrInsufficientFunds
		}

		newTxn := &model.Transaction{
			ID:              idgen.NextID(),
			Reference:       op.reference,
			Type:            op.txnType,
			IdempotencyHash: hash,
			Amount:          op.amount,
			Status:          model.TransactionStatusCompleted,
			Description:     op.description,
		}
		if err := st.Transactions().Create(ctx, newTxn); err != nil {
			return err
		}

		if err := s.postEntries(ctx, st, newTxn, debitAcct, creditAcct, op.amount, op.checkFunds); err != nil {
			return err
		}

		if err := s.appendOutbox(ctx, st, newTxn, op.eventType, debitAcct.AccountRef, creditAcct.AccountRef); err != nil {
			return err
		}

		result = newTxn
		return nil
	})

	if err != nil {
		// 并发的同引用首次请求先行提交：这是良性竞争，
		// 回查并返回胜出方的交易，不向调用方暴露错误
		if errors.Is(err, repository.ErrDuplicateReference) {
			lg.Info().Msg("引用并发落库竞争，回查胜出方交易")
			return s.resolveDuplicate(ctx, op.reference, hash)
		}
		s.metrics.RecordFailure(err.Error())
		lg.Warn().Err(err).Msg("交易执行失败")
		return nil, err
	}

	s.recordSuccess(op.txnType, op.amount)
	lg.Info().Int64("transaction_id", result.ID).Msg("交易完成")
	return result, nil
}

// checkIdempotent 幂等检查
// 引用不存在 -> (nil, nil) 放行；存在且指纹一致 -> 返回既有交易；
// 存在但指纹不一致 -> ErrIdempotencyConflict，这是调用方的 bug，绝不静默成功
func (s *LedgerService) checkIdempotent(ctx context.Context, txns repository.TransactionStore, reference, hash string) (*model.Transaction, error) {
	txn, err := txns.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("查询交易失败: %w", err)
	}
	if txn == nil {
		return nil, nil
	}
	if txn.IdempotencyHash != hash {
		return nil, ErrIdempotencyConflict
	}
	return txn, nil
}

func (s *LedgerService) resolveDuplicate(ctx context.Context, reference, hash string) (*model.Transaction, error) {
	txn, err := s.checkIdempotent(ctx, s.store.Transactions(), reference, hash)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("引用 %s 已被占用但交易不可见", reference)
	}
	return txn, nil
}

// postEntries 更新余额缓存并写两条复式流水
// 两个账户此时都已持有行锁，流水中的前后余额与缓存严格一致
func (s *LedgerService) postEntries(ctx context.Context, st repository.Store, txn *model.Transaction, debitAcct, creditAcct *model.Account, amount decimal.Decimal, guarded bool) error {
	if guarded {
		if err := st.Accounts().Deduct(ctx, debitAcct.ID, amount, debitAcct.Version); err != nil {
			return err
		}
	} else {
		// 外部账户无余额下限，直接原子减
		if err := st.Accounts().Increase(ctx, debitAcct.ID, amount.Neg()); err != nil {
			return err
		}
	}
	if err := st.Accounts().Increase(ctx, creditAcct.ID, amount); err != nil {
		return err
	}

	debitEntry := &model.LedgerEntry{
		TransactionID: txn.ID,
		AccountID:     debitAcct.ID,
		EntryType:     model.EntryTypeDebit,
		Amount:        amount,
		BalanceBefore: debitAcct.Balance,
		BalanceAfter:  debitAcct.Balance.Sub(amount),
	}
	if err := st.Entries().Create(ctx, debitEntry); err != nil {
		return fmt.Errorf("写借记流水失败: %w", err)
	}

	// 借贷同户时贷记腿接着借记后的余额记账，
	// 保证最新一条流水的 balance_after 等于提交后的缓存余额
	creditBefore := creditAcct.Balance
	if creditAcct.ID == debitAcct.ID {
		creditBefore = debitEntry.BalanceAfter
	}

	creditEntry := &model.LedgerEntry{
		TransactionID: txn.ID,
		AccountID:     creditAcct.ID,
		EntryType:     model.EntryTypeCredit,
		Amount:        amount,
		BalanceBefore: creditBefore,
		BalanceAfter:  creditBefore.Add(amount),
	}
	if err := st.Entries().Create(ctx, creditEntry); err != nil {
		return fmt.Errorf("写贷记流水失败: %w", err)
	}

	return nil
}

// appendOutbox 在同一事务内追加发件箱记录
// 载荷带上下游消费者反应所需的全部字段，避免回查账本
func (s *LedgerService) appendOutbox(ctx context.Context, st repository.Store, txn *model.Transaction, eventType, debitRef, creditRef string) error {
	payload, err := json.Marshal(map[string]string{
		"sourceAccountRef":      debitRef,
		"destinationAccountRef": creditRef,
		"transactionRef":        txn.Reference,
		"amount":                txn.Amount.String(),
	})
	if err != nil {
		return fmt.Errorf("序列化事件载荷失败: %w", err)
	}

	event := &model.OutboxEvent{
		AggregateType: model.AggregateTypeTransaction,
		AggregateID:   strconv.FormatInt(txn.ID, 10),
		EventType:     eventType,
		Payload:       string(payload),
	}
	if err := st.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("写入发件箱失败: %w", err)
	}
	return nil
}

func (s *LedgerService) recordSuccess(txnType string, amount decimal.Decimal) {
	switch txnType {
	case model.TransactionTypeTransfer:
		s.metrics.RecordTransfer()
	case model.TransactionTypeDeposit:
		s.metrics.RecordDeposit()
	case model.TransactionTypeHold:
		s.metrics.RecordHold()
	case model.TransactionTypeCapture:
		s.metrics.RecordCapture()
	}
	s.metrics.RecordTransactionAmount(txnType, amount)
}

// lockAccountPair 按引用字典序对两个账户加行锁
// 固定加锁顺序，避免两笔方向相反的操作互相等待形成死锁
func lockAccountPair(ctx context.Context, st repository.Store, debitRef, creditRef string) (*model.Account, *model.Account, error) {
	if debitRef == creditRef {
		acct, err := st.Accounts().GetByRefForUpdate(ctx, debitRef)
		if err != nil {
			return nil, nil, fmt.Errorf("账户 %s: %w", debitRef, err)
		}
		return acct, acct, nil
	}

	first, second := debitRef, creditRef
	if first > second {
		first, second = second, first
	}

	locked := make(map[string]*model.Account, 2)
	for _, ref := range []string{first, second} {
		acct, err := st.Accounts().GetByRefForUpdate(ctx, ref)
		if err != nil {
			return nil, nil, fmt.Errorf("账户 %s: %w", ref, err)
		}
		locked[ref] = acct
	}

	return locked[debitRef], locked[creditRef], nil
}
