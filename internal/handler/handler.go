package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ledgerpay/internal/service"
	"ledgerpay/pkg/response"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledgerService  *service.LedgerService
	accountService *service.AccountService
}

func NewHandler(ledgerService *service.LedgerService, accountService *service.AccountService) *Handler {
	return &Handler{
		ledgerService:  ledgerService,
		accountService: accountService,
	}
}

// writeError 业务错误到响应码的统一映射
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrIdempotencyConflict):
		response.BusinessError(c, response.CodeIdempotencyConflict, err.Error())
	case errors.Is(err, service.ErrInvalidAccountType):
		response.BusinessError(c, response.CodeInvalidAccountType, err.Error())
	case errors.Is(err, service.ErrAccountKindMismatch):
		response.BusinessError(c, response.CodeAccountKindMismatch, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 转账相关接口
// ============================================================

// TransferRequest 转账请求
type TransferRequest struct {
	SourceAccountRef      string          `json:"source_account_ref" binding:"required"`
	DestinationAccountRef string          `json:"destination_account_ref" binding:"required"`
	Amount                decimal.Decimal `json:"amount" binding:"required"`
	Reference             string          `json:"reference" binding:"required"` // 幂等引用，客户端生成
	Description           string          `json:"description"`
}

// Transfer 钱包间转账
// POST /api/v1/transfer
//
// 【关键点】相同的 reference 只会执行一次，重复提交返回首次结果
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.ledgerService.Transfer(c.Request.Context(),
		req.SourceAccountRef, req.DestinationAccountRef,
		req.Amount, req.Reference, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, txn)
}

// DepositRequest 入账请求
type DepositRequest struct {
	ExternalAccountRef string          `json:"external_account_ref" binding:"required"`
	WalletAccountRef   string          `json:"wallet_account_ref" binding:"required"`
	Amount             decimal.Decimal `json:"amount" binding:"required"`
	Reference          string          `json:"reference" binding:"required"`
	Description        string          `json:"description"`
}

// Deposit 外部渠道入账到用户钱包
// POST /api/v1/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.ledgerService.Deposit(c.Request.Context(),
		req.ExternalAccountRef, req.WalletAccountRef,
		req.Amount, req.Reference, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, txn)
}

// HoldRequest 资金预留请求
type HoldRequest struct {
	AccountRef  string          `json:"account_ref" binding:"required"`
	HoldRef     string          `json:"hold_ref" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Reference   string          `json:"reference" binding:"required"`
	Description string          `json:"description"`
}

// Hold 预留资金到暂存账户
// POST /api/v1/hold
func (h *Handler) Hold(c *gin.Context) {
	var req HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.ledgerService.Hold(c.Request.Context(),
		req.Amount, req.AccountRef, req.HoldRef,
		req.Description, req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, txn)
}

// CaptureHoldRequest 预留资金划拨请求
type CaptureHoldRequest struct {
	HoldRef               string          `json:"hold_ref" binding:"required"`
	DestinationAccountRef string          `json:"destination_account_ref" binding:"required"`
	Amount                decimal.Decimal `json:"amount" binding:"required"`
	Reference             string          `json:"reference" binding:"required"`
	Description           string          `json:"description"`
}

// CaptureHold 把预留资金划拨给收款方
// POST /api/v1/hold/capture
func (h *Handler) CaptureHold(c *gin.Context) {
	var req CaptureHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.ledgerService.CaptureHold(c.Request.Context(),
		req.Amount, req.DestinationAccountRef, req.HoldRef,
		req.Description, req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, txn)
}

// GetTransaction 按幂等引用查询交易
// GET /api/v1/transaction?reference=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		response.ParamError(c, "reference 参数不能为空")
		return
	}

	txn, err := h.ledgerService.GetTransaction(c.Request.Context(), reference)
	if err != nil {
		writeError(c, err)
		return
	}
	if txn == nil {
		response.BusinessError(c, response.CodeTransactionNotFound, "交易不存在")
		return
	}

	response.Success(c, txn)
}

// ============================================================
// 账户相关接口
// ============================================================

// CreateAccountRequest 开户请求，currency 留空时使用默认币种
type CreateAccountRequest struct {
	AccountRef  string `json:"account_ref" binding:"required"`
	AccountType string `json:"account_type" binding:"required"`
	Currency    string `json:"currency"`
}

// CreateAccount 开户，同一引用重复开户返回已有账户
// POST /api/v1/account/create
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(),
		req.AccountRef, req.AccountType, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, account)
}

// GetBalance 查询账户余额
// GET /api/v1/account/balance?account_ref=xxx
//
// 缓存余额来自账户表，权威余额来自最新一条流水，两者正常应一致
func (h *Handler) GetBalance(c *gin.Context) {
	ref := c.Query("account_ref")
	if ref == "" {
		response.ParamError(c, "account_ref 参数不能为空")
		return
	}

	account, entry, err := h.accountService.GetAuthoritativeBalance(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}

	authoritative := decimal.Zero
	if entry != nil {
		authoritative = entry.BalanceAfter
	}

	response.Success(c, gin.H{
		"account_ref":           account.AccountRef,
		"currency":              account.Currency,
		"balance":               account.Balance,
		"authoritative_balance": authoritative,
	})
}
