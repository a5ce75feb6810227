package service

import (
	"context"
	"errors"
	"fmt"

	"ledgerpay/internal/model"
	"ledgerpay/internal/repository"
)

var ErrInvalidAccountType = errors.New("账户类型不合法")

// AccountService 账户开立与查询
// USER_WALLET / EXTERNAL 账户通过带外开立，HOLD 账户由账务引擎懒创建
type AccountService struct {
	store           repository.Store
	defaultCurrency string
}

func NewAccountService(store repository.Store, defaultCurrency string) *AccountService {
	return &AccountService{store: store, defaultCurrency: defaultCurrency}
}

// CreateAccount 开户，currency 留空时使用配置的默认币种
func (s *AccountService) CreateAccount(ctx context.Context, ref, accountType, currency string) (*model.Account, error) {
	if accountType != model.AccountTypeExternal && accountType != model.AccountTypeUserWallet {
		return nil, ErrInvalidAccountType
	}
	if currency == "" {
		currency = s.defaultCurrency
	}
	return s.store.Accounts().GetOrCreate(ctx, ref, accountType, currency)
}

func (s *AccountService) GetAccount(ctx context.Context, ref string) (*model.Account, error) {
	return s.store.Accounts().GetByRef(ctx, ref)
}

// GetAuthoritativeBalance 按最新流水的 balance_after 取权威余额
// 无流水的新账户返回缓存余额（零）
func (s *AccountService) GetAuthoritativeBalance(ctx context.Context, ref string) (*model.Account, *model.LedgerEntry, error) {
	account, err := s.store.Accounts().GetByRef(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.store.Entries().GetLatestByAccountID(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询流水失败: %w", err)
	}
	return account, entry, nil
}
