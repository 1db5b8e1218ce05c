package escrow

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type handler struct {
	escrow          escrow.IEscrow
	logger          *logger.Logger
	metricsRecorder *monitoring.BusinessMetricsRecorder
}

func New(escrow escrow.IEscrow, logger *logger.Logger, metricsRecorder *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		escrow:          escrow,
		logger:          logger,
		metricsRecorder: metricsRecorder,
	}
}

// Credit godoc
// @Summary Credit account
// @Description Admin only. Adds a ledger deposit to the account's available balance
// @id creditAccount
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param account path string true "Account"
// @Param request body AmountRequest true "Amount"
// @Success 200 {object} view.Response[AccountResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Router /admin/accounts/{account}/credit [post]
func (h *handler) Credit(c *gin.Context) {
	h.move(c, "credit", h.escrow.Credit)
}

// Withdraw godoc
// @Summary Withdraw available balance
// @Description Moves available balance back to the ledger; locked funds cannot be withdrawn
// @id withdrawAccount
// @Tags Escrow
// @Accept json
// @Produce json
// @Param account path string true "Account"
// @Param request body AmountRequest true "Amount"
// @Success 200 {object} view.Response[AccountResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 402 {object} view.ErrorResponse
// @Router /accounts/{account}/withdraw [post]
func (h *handler) Withdraw(c *gin.Context) {
	h.move(c, "withdraw", h.escrow.Withdraw)
}

// GetAccount godoc
// @Summary Get account balances
// @id getAccount
// @Tags Escrow
// @Produce json
// @Param account path string true "Account"
// @Success 200 {object} view.Response[AccountResponse]
// @Router /accounts/{account} [get]
func (h *handler) GetAccount(c *gin.Context) {
	acc, err := h.escrow.GetAccount(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.fail(c, "GetAccount", err, nil, "failed to get account")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toAccountResponse(acc), nil, nil, ""))
}

// ListLocks godoc
// @Summary List escrow locks owned by an account
// @id listAccountLocks
// @Tags Escrow
// @Produce json
// @Param account path string true "Account"
// @Param status query string false "locked, released, refunded or settled"
// @Success 200 {object} view.Response[[]model.EscrowLock]
// @Router /accounts/{account}/locks [get]
func (h *handler) ListLocks(c *gin.Context) {
	locks, err := h.escrow.ListLocks(c.Request.Context(), c.Param("account"), model.EscrowLockStatus(c.Query("status")))
	if err != nil {
		h.fail(c, "ListLocks", err, nil, "failed to list locks")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](locks, nil, nil, ""))
}

// GetLock godoc
// @Summary Get escrow lock
// @id getLock
// @Tags Escrow
// @Produce json
// @Param ref path string true "Lock reference, e.g. otc:12"
// @Success 200 {object} view.Response[model.EscrowLock]
// @Failure 404 {object} view.ErrorResponse
// @Router /locks/{ref} [get]
func (h *handler) GetLock(c *gin.Context) {
	lock, err := h.escrow.GetLock(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.fail(c, "GetLock", err, nil, "failed to get lock")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](lock, nil, nil, ""))
}

func (h *handler) move(c *gin.Context, op string, fn func(ctx context.Context, account string, amount decimal.Decimal) (*model.EscrowAccount, error)) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("["+op+"][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	acc, err := fn(c.Request.Context(), c.Param("account"), req.Amount)
	h.record(op, start, err)
	if err != nil {
		h.fail(c, op, err, req, "failed to "+op)
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toAccountResponse(acc), nil, nil, ""))
}

func (h *handler) fail(c *gin.Context, op string, err error, req any, message string) {
	status := view.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("["+op+"]", map[string]string{
			"account": c.Param("account"),
			"error":   err.Error(),
		})
	}
	c.JSON(status, view.CreateResponse[any](nil, err, req, message))
}

func (h *handler) record(operation string, start time.Time, err error) {
	h.metricsRecorder.Record(monitoring.CategoryEscrow, operation, start, err)
}

func toAccountResponse(acc *model.EscrowAccount) AccountResponse {
	return AccountResponse{
		Account:   acc.Account,
		Available: acc.Available,
		Locked:    acc.Locked,
		Total:     acc.Available.Add(acc.Locked),
	}
}
