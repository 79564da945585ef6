package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"accountstate/internal/account"
	"accountstate/internal/model"
	"accountstate/internal/repository"
	"accountstate/internal/service"
	"accountstate/pkg/logger"
	"accountstate/pkg/money"
	"accountstate/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountService handler 依赖的账户服务
type AccountService interface {
	CreateAccount(ctx context.Context, initialBalance int64) (*model.Account, error)
	GetAccount(ctx context.Context, accountNo string) (*model.Account, error)
	Deposit(ctx context.Context, accountNo string, amount int64, requestID string) (*service.OperationResult, error)
	Withdraw(ctx context.Context, accountNo string, amount int64, requestID string) (*service.OperationResult, error)
	Freeze(ctx context.Context, accountNo string) (*service.OperationResult, error)
	Unfreeze(ctx context.Context, accountNo string) (*service.OperationResult, error)
	Close(ctx context.Context, accountNo string) (*service.OperationResult, error)
	History(ctx context.Context, accountNo string, page, pageSize int) ([]*model.AccountTransaction, int64, error)
}

// Handler 账户接口处理器
type Handler struct {
	accountService  AccountService
	maxPageSize     int
	defaultPageSize int
}

// NewHandler 创建处理器实例
func NewHandler(accountService AccountService, maxPageSize int) *Handler {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Handler{
		accountService:  accountService,
		maxPageSize:     maxPageSize,
		defaultPageSize: 20,
	}
}

// ============================================================
// 视图
// ============================================================

type accountView struct {
	AccountNo      string     `json:"account_no"`
	Balance        int64      `json:"balance"`
	BalanceDisplay string     `json:"balance_display"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

func toAccountView(a *model.Account) accountView {
	return accountView{
		AccountNo:      a.AccountNo,
		Balance:        a.Balance,
		BalanceDisplay: money.Format(a.Balance),
		Status:         a.Status,
		CreatedAt:      a.CreatedAt,
		ClosedAt:       a.ClosedAt,
	}
}

type operationView struct {
	*service.OperationResult
	BalanceDisplay string `json:"balance_display"`
}

func toOperationView(r *service.OperationResult) operationView {
	return operationView{OperationResult: r, BalanceDisplay: money.Format(r.Balance)}
}

// ============================================================
// 账户接口
// ============================================================

// CreateAccountRequest 开户请求，金额为两位小数的字符串，如 "1000.00"
type CreateAccountRequest struct {
	InitialBalance string `json:"initial_balance"`
}

// CreateAccount 开户
// POST /api/v1/account/create
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.InitialBalance == "" {
		req.InitialBalance = "0"
	}
	balance, err := money.Parse(req.InitialBalance)
	if err != nil {
		response.ParamError(c, "initial_balance 参数错误: "+err.Error())
		return
	}

	acct, err := h.accountService.CreateAccount(c.Request.Context(), balance)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, toAccountView(acct))
}

// GetBalance 查询余额与状态
// GET /api/v1/account/balance?account_no=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountNo := c.Query("account_no")
	if accountNo == "" {
		response.ParamError(c, "account_no 参数不能为空")
		return
	}

	acct, err := h.accountService.GetAccount(c.Request.Context(), accountNo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, toAccountView(acct))
}

// AmountRequest 存取款请求
type AmountRequest struct {
	AccountNo string `json:"account_no" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	RequestID string `json:"request_id" binding:"max=64"` // 幂等性ID，可选
}

// Deposit 存款
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	h.moveMoney(c, h.accountService.Deposit)
}

// Withdraw 取款
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.moveMoney(c, h.accountService.Withdraw)
}

type moneyFunc func(ctx context.Context, accountNo string, amount int64, requestID string) (*service.OperationResult, error)

func (h *Handler) moveMoney(c *gin.Context, fn moneyFunc) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误: "+err.Error())
		return
	}

	result, err := fn(c.Request.Context(), req.AccountNo, amount, req.RequestID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, toOperationView(result))
}

// AccountRequest 状态变更请求
type AccountRequest struct {
	AccountNo string `json:"account_no" binding:"required"`
}

// Freeze 冻结
// POST /api/v1/account/freeze
func (h *Handler) Freeze(c *gin.Context) {
	h.transition(c, h.accountService.Freeze)
}

// Unfreeze 解冻
// POST /api/v1/account/unfreeze
func (h *Handler) Unfreeze(c *gin.Context) {
	h.transition(c, h.accountService.Unfreeze)
}

// Close 销户
// POST /api/v1/account/close
func (h *Handler) Close(c *gin.Context) {
	h.transition(c, h.accountService.Close)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, accountNo string) (*service.OperationResult, error)) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := fn(c.Request.Context(), req.AccountNo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, toOperationView(result))
}

// History 查询流水
// GET /api/v1/account/history?account_no=xxx&page=1&page_size=20
func (h *Handler) History(c *gin.Context) {
	accountNo := c.Query("account_no")
	if accountNo == "" {
		response.ParamError(c, "account_no 参数不能为空")
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		response.ParamError(c, "page 参数错误")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(h.defaultPageSize)))
	if err != nil || pageSize < 1 {
		response.ParamError(c, "page_size 参数错误")
		return
	}
	if pageSize > h.maxPageSize {
		pageSize = h.maxPageSize
	}

	list, total, err := h.accountService.History(c.Request.Context(), accountNo, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// writeError 按错误类型返回业务错误码，基础设施错误不向调用方暴露细节
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, account.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, account.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, account.ErrAccountFrozen):
		response.BusinessError(c, response.CodeAccountFrozen, err.Error())
	case errors.Is(err, account.ErrAccountClosed):
		response.BusinessError(c, response.CodeAccountClosed, err.Error())
	case errors.Is(err, account.ErrBalanceOverflow):
		response.BusinessError(c, response.CodeBalanceOverflow, err.Error())
	case errors.Is(err, repository.ErrDuplicateRequest):
		response.BusinessError(c, response.CodeDuplicateRequest, err.Error())
	case errors.Is(err, service.ErrSystemBusy), errors.Is(err, repository.ErrOptimisticLock):
		response.BusinessError(c, response.CodeSystemBusy, service.ErrSystemBusy.Error())
	default:
		logger.L().Error("请求处理失败",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(response.RequestIDKey)),
			zap.Error(err),
		)
		response.ServerError(c, "服务器内部错误")
	}
}
