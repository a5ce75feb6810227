package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ledgerpay/internal/infrastructure/lock"
	"ledgerpay/internal/model"
	"ledgerpay/internal/observability"
	"ledgerpay/internal/repository/memory"
)

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewAccountService(store, "NGN")

	account, err := svc.CreateAccount(ctx, "wallet-1", model.AccountTypeUserWallet, "NGN")
	require.NoError(t, err)
	require.Equal(t, "wallet-1", account.AccountRef)
	require.True(t, account.Balance.IsZero())

	// 重复开户返回已有账户
	again, err := svc.CreateAccount(ctx, "wallet-1", model.AccountTypeUserWallet, "NGN")
	require.NoError(t, err)
	require.Equal(t, account.ID, again.ID)

	// 币种留空时落默认币种
	defaulted, err := svc.CreateAccount(ctx, "wallet-2", model.AccountTypeUserWallet, "")
	require.NoError(t, err)
	require.Equal(t, "NGN", defaulted.Currency)

	// 引用已被其他类型账户占用
	_, err = svc.CreateAccount(ctx, "wallet-1", model.AccountTypeExternal, "NGN")
	require.ErrorIs(t, err, ErrAccountKindMismatch)

	// HOLD 账户不允许带外开立
	_, err = svc.CreateAccount(ctx, "hold-1", model.AccountTypeHold, "NGN")
	require.ErrorIs(t, err, ErrInvalidAccountType)

	_, err = svc.CreateAccount(ctx, "x", "BOGUS", "NGN")
	require.ErrorIs(t, err, ErrInvalidAccountType)
}

func TestGetAuthoritativeBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	accountSvc := NewAccountService(store, "NGN")

	// 无流水的新账户
	_, err := accountSvc.CreateAccount(ctx, "wallet-1", model.AccountTypeUserWallet, "NGN")
	require.NoError(t, err)

	account, entry, err := accountSvc.GetAuthoritativeBalance(ctx, "wallet-1")
	require.NoError(t, err)
	require.Nil(t, entry)
	require.True(t, account.Balance.IsZero())

	// 有交易后，权威余额来自最新流水
	_, err = accountSvc.CreateAccount(ctx, "bank", model.AccountTypeExternal, "NGN")
	require.NoError(t, err)

	ledgerSvc := NewLedgerService(store, lock.NewLocalLocker(), observability.Nop{}, zerolog.Nop())
	_, err = ledgerSvc.Deposit(ctx, "bank", "wallet-1", dec("200"), "dep-1", "")
	require.NoError(t, err)

	account, entry, err = accountSvc.GetAuthoritativeBalance(ctx, "wallet-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.True(t, entry.BalanceAfter.Equal(dec("200")))
	require.True(t, account.Balance.Equal(entry.BalanceAfter))

	_, _, err = accountSvc.GetAuthoritativeBalance(ctx, "ghost")
	require.ErrorIs(t, err, ErrAccountNotFound)
}
