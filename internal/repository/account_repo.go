package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledgerpay/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByRef(ctx context.Context, ref string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_ref = ?", ref).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByRefAndType(ctx context.Context, ref, accountType string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("account_ref = ? AND account_type = ?", ref, accountType).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByRefForUpdate 用 SELECT ... FOR UPDATE 读取账户
// 行锁持有到所在事务结束，串行化同一账户上的并发扣款
func (r *AccountRepository) GetByRefForUpdate(ctx context.Context, ref string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_ref = ?", ref).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetOrCreate 并发安全的取或建：利用唯一索引 + ON CONFLICT DO NOTHING，
// 两个请求同时首次引用同一 HOLD 账户时，以先落库者为准。
// 引用已被占用但类型或币种不符时拒绝，防止资金落进别人的钱包
func (r *AccountRepository) GetOrCreate(ctx context.Context, ref, accountType, currency string) (*model.Account, error) {
	account, err := r.GetByRef(ctx, ref)
	if err == nil {
		return verifyAccountKind(account, accountType, currency)
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		AccountRef:  ref,
		AccountType: accountType,
		Currency:    currency,
		Balance:     decimal.Zero,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_ref"}},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil {
		return nil, err
	}

	// 并发创建时可能读到对方落库的行，同样要校验
	account, err = r.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return verifyAccountKind(account, accountType, currency)
}

func verifyAccountKind(account *model.Account, accountType, currency string) (*model.Account, error) {
	if account.AccountType != accountType || account.Currency != currency {
		return nil, ErrAccountKindMismatch
	}
	return account, nil
}

// Deduct 扣减余额，balance >= amount 和 version 双重守卫
// 行未命中时回查区分是余额不足还是版本冲突
func (r *AccountRepository) Deduct(ctx context.Context, id int64, amount decimal.Decimal, version int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND balance >= ? AND version = ?", id, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var account model.Account
		if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 原子增加余额，amount 为负时即无余额校验的出账（外部账户允许为负）
func (r *AccountRepository) Increase(ctx context.Context, id int64, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func (r *AccountRepository) List(ctx context.Context, offset, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
