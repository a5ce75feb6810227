package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ledgerpay/internal/infrastructure/lock"
	"ledgerpay/internal/model"
	"ledgerpay/internal/observability"
	"ledgerpay/internal/repository/memory"
	"ledgerpay/internal/service"
	"ledgerpay/pkg/response"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ledgerSvc := service.NewLedgerService(store, lock.NewLocalLocker(), observability.Nop{}, zerolog.Nop())
	accountSvc := service.NewAccountService(store, "NGN")
	return SetupRouter(ledgerSvc, accountSvc, zerolog.Nop()), store
}

func seedAccount(t *testing.T, store *memory.Store, ref, accountType, balance string) {
	t.Helper()
	require.NoError(t, store.Accounts().Create(context.Background(), &model.Account{
		AccountRef:  ref,
		AccountType: accountType,
		Currency:    "NGN",
		Balance:     decimal.RequireFromString(balance),
	}))
}

func doJSON(router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestTransferEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	seedAccount(t, store, "alice", model.AccountTypeUserWallet, "100")
	seedAccount(t, store, "bob", model.AccountTypeUserWallet, "0")

	w, resp := doJSON(router, http.MethodPost, "/api/v1/transfer",
		`{"source_account_ref":"alice","destination_account_ref":"bob","amount":"30","reference":"ref-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeSuccess, resp.Code)

	// 缺少必填字段
	_, resp = doJSON(router, http.MethodPost, "/api/v1/transfer",
		`{"source_account_ref":"alice","amount":"30","reference":"ref-2"}`)
	require.Equal(t, response.CodeParamError, resp.Code)

	// 余额不足映射到业务错误码
	_, resp = doJSON(router, http.MethodPost, "/api/v1/transfer",
		`{"source_account_ref":"alice","destination_account_ref":"bob","amount":"1000","reference":"ref-3"}`)
	require.Equal(t, response.CodeInsufficientFunds, resp.Code)

	// 同引用不同参数
	_, resp = doJSON(router, http.MethodPost, "/api/v1/transfer",
		`{"source_account_ref":"alice","destination_account_ref":"bob","amount":"31","reference":"ref-1"}`)
	require.Equal(t, response.CodeIdempotencyConflict, resp.Code)

	// 账户不存在
	_, resp = doJSON(router, http.MethodPost, "/api/v1/transfer",
		`{"source_account_ref":"ghost","destination_account_ref":"bob","amount":"1","reference":"ref-4"}`)
	require.Equal(t, response.CodeAccountNotFound, resp.Code)
}

func TestAccountEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	_, resp := doJSON(router, http.MethodPost, "/api/v1/account/create",
		`{"account_ref":"wallet-1","account_type":"USER_WALLET","currency":"NGN"}`)
	require.Equal(t, response.CodeSuccess, resp.Code)

	// 币种可留空，落默认币种
	_, resp = doJSON(router, http.MethodPost, "/api/v1/account/create",
		`{"account_ref":"wallet-2","account_type":"USER_WALLET"}`)
	require.Equal(t, response.CodeSuccess, resp.Code)

	// HOLD 类型不允许带外开立
	_, resp = doJSON(router, http.MethodPost, "/api/v1/account/create",
		`{"account_ref":"hold-1","account_type":"HOLD","currency":"NGN"}`)
	require.Equal(t, response.CodeInvalidAccountType, resp.Code)

	_, resp = doJSON(router, http.MethodGet, "/api/v1/account/balance?account_ref=wallet-1", "")
	require.Equal(t, response.CodeSuccess, resp.Code)

	_, resp = doJSON(router, http.MethodGet, "/api/v1/account/balance?account_ref=ghost", "")
	require.Equal(t, response.CodeAccountNotFound, resp.Code)

	_, resp = doJSON(router, http.MethodGet, "/api/v1/account/balance", "")
	require.Equal(t, response.CodeParamError, resp.Code)
}

func TestTransactionEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	seedAccount(t, store, "bank", model.AccountTypeExternal, "0")
	seedAccount(t, store, "wallet-1", model.AccountTypeUserWallet, "0")

	_, resp := doJSON(router, http.MethodPost, "/api/v1/deposit",
		`{"external_account_ref":"bank","wallet_account_ref":"wallet-1","amount":"200","reference":"dep-1"}`)
	require.Equal(t, response.CodeSuccess, resp.Code)

	_, resp = doJSON(router, http.MethodGet, "/api/v1/transaction?reference=dep-1", "")
	require.Equal(t, response.CodeSuccess, resp.Code)

	_, resp = doJSON(router, http.MethodGet, "/api/v1/transaction?reference=missing", "")
	require.Equal(t, response.CodeTransactionNotFound, resp.Code)
}

func TestHoldEndpoints(t *testing.T) {
	router, store := newTestRouter(t)
	seedAccount(t, store, "payer", model.AccountTypeUserWallet, "100")
	seedAccount(t, store, "merchant", model.AccountTypeUserWallet, "0")

	_, resp := doJSON(router, http.MethodPost, "/api/v1/hold",
		`{"account_ref":"payer","hold_ref":"hold-1","amount":"40","reference":"ref-h1"}`)
	require.Equal(t, response.CodeSuccess, resp.Code)

	_, resp = doJSON(router, http.MethodPost, "/api/v1/hold/capture",
		`{"hold_ref":"hold-1","destination_account_ref":"merchant","amount":"40","reference":"ref-c1"}`)
	require.Equal(t, response.CodeSuccess, resp.Code)

	merchant, err := store.Accounts().GetByRef(context.Background(), "merchant")
	require.NoError(t, err)
	require.True(t, merchant.Balance.Equal(decimal.RequireFromString("40")))
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
