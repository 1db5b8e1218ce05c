package swap

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/store/swaprecord"
	"github.com/dwarvesf/escrow-backend/internal/swap"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type handler struct {
	swap            swap.ISwap
	logger          *logger.Logger
	metricsRecorder *monitoring.BusinessMetricsRecorder
}

func New(swap swap.ISwap, logger *logger.Logger, metricsRecorder *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		swap:            swap,
		logger:          logger,
		metricsRecorder: metricsRecorder,
	}
}

// CreateSwap godoc
// @Summary Create maker swap
// @Description Locks the user's COS until the maker's USDT transfer to usdt_address is verified
// @id createSwap
// @Tags Swap
// @Accept json
// @Produce json
// @Param request body swap.CreateSwapRequest true "Swap request parameters"
// @Success 200 {object} view.Response[model.SwapRecord]
// @Failure 400 {object} view.ErrorResponse
// @Failure 402 {object} view.ErrorResponse
// @Router /swaps [post]
func (h *handler) CreateSwap(c *gin.Context) {
	var req swap.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[CreateSwap][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	record, err := h.swap.CreateSwap(c.Request.Context(), req)
	h.record("create", start, err)
	if err != nil {
		h.fail(c, "CreateSwap", err, req, "failed to create swap")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](record, nil, nil, ""))
}

// SubmitTxHash godoc
// @Summary Submit TRC20 transfer
// @Description The maker reports the USDT transfer hash; resubmitting replaces the pending hash
// @id submitSwapTxHash
// @Tags Swap
// @Accept json
// @Produce json
// @Param id path int true "Swap ID"
// @Param request body SubmitTxHashRequest true "Transfer"
// @Success 200 {object} view.Response[model.SwapRecord]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /swaps/{id}/tx-hash [post]
func (h *handler) SubmitTxHash(c *gin.Context) {
	var req SubmitTxHashRequest
	id, ok := h.bind(c, "SubmitTxHash", &req)
	if !ok {
		return
	}

	start := time.Now()
	record, err := h.swap.SubmitTxHash(c.Request.Context(), id, req.MakerID, req.TxHash)
	h.record("submit_tx_hash", start, err)
	if err != nil {
		h.fail(c, "SubmitTxHash", err, req, "failed to submit tx hash")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](record, nil, nil, ""))
}

// Verify godoc
// @Summary Verify the submitted transfer
// @Description Asks the payment oracle about the current transfer and applies the result
// @id verifySwap
// @Tags Swap
// @Produce json
// @Param id path int true "Swap ID"
// @Success 200 {object} view.Response[VerifyResponse]
// @Failure 409 {object} view.ErrorResponse
// @Failure 502 {object} view.ErrorResponse
// @Router /swaps/{id}/verify [post]
func (h *handler) Verify(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid swap id"))
		return
	}

	start := time.Now()
	result, err := h.swap.Verify(c.Request.Context(), id)
	h.record("verify", start, err)
	if err != nil {
		h.fail(c, "Verify", err, nil, "failed to verify swap")
		return
	}

	record, err := h.swap.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Verify", err, nil, "failed to get swap")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](VerifyResponse{Result: result, Swap: record}, nil, nil, ""))
}

// ApplyVerification godoc
// @Summary Apply relayer verification
// @Description Admin only. Applies a verification result observed off the API; stale hashes are rejected
// @id applySwapVerification
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param id path int true "Swap ID"
// @Param request body ApplyVerificationRequest true "Result"
// @Success 200 {object} view.Response[model.SwapRecord]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/swaps/{id}/verification [post]
func (h *handler) ApplyVerification(c *gin.Context) {
	var req ApplyVerificationRequest
	id, ok := h.bind(c, "ApplyVerification", &req)
	if !ok {
		return
	}

	start := time.Now()
	record, err := h.swap.ApplyVerification(c.Request.Context(), id, req.TxHash, req.Status)
	h.record("apply_verification", start, err)
	if err != nil {
		h.fail(c, "ApplyVerification", err, req, "failed to apply verification")
		return
	}

	h.logger.Info("[ApplyVerification] relayer result applied", map[string]string{
		"swap_id": strconv.FormatUint(id, 10),
		"status":  string(record.Status),
	})
	c.JSON(http.StatusOK, view.CreateResponse[any](record, nil, nil, ""))
}

// GetSwap godoc
// @Summary Get swap
// @id getSwap
// @Tags Swap
// @Produce json
// @Param id path int true "Swap ID"
// @Success 200 {object} view.Response[model.SwapRecord]
// @Failure 404 {object} view.ErrorResponse
// @Router /swaps/{id} [get]
func (h *handler) GetSwap(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid swap id"))
		return
	}

	record, err := h.swap.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "GetSwap", err, nil, "failed to get swap")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](record, nil, nil, ""))
}

// ListSwaps godoc
// @Summary List swaps
// @Description Filters by user account or maker; one of the two is required
// @id listSwaps
// @Tags Swap
// @Produce json
// @Param account query string false "User account"
// @Param maker_id query string false "Maker ID"
// @Param status query string false "Swap status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} view.Response[ListSwapsResponse]
// @Failure 400 {object} view.ErrorResponse
// @Router /swaps [get]
func (h *handler) ListSwaps(c *gin.Context) {
	var req ListSwapsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	if req.Account == "" && req.MakerID == "" {
		err := model.Validationf("account or maker_id is required")
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	req.Normalize()

	swaps, total, err := h.swap.ListByAccount(c.Request.Context(), swaprecord.ListFilter{
		Account: req.Account,
		MakerID: req.MakerID,
		Status:  model.SwapStatus(req.Status),
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		h.fail(c, "ListSwaps", err, req, "failed to list swaps")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](ListSwapsResponse{Total: total, Swaps: swaps}, nil, nil, ""))
}

func (h *handler) bind(c *gin.Context, op string, req any) (uint64, bool) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid swap id"))
		return 0, false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Error("["+op+"][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return 0, false
	}
	return id, true
}

func (h *handler) fail(c *gin.Context, op string, err error, req any, message string) {
	status := view.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("["+op+"]", map[string]string{
			"swap_id": c.Param("id"),
			"error":   err.Error(),
		})
	}
	c.JSON(status, view.CreateResponse[any](nil, err, req, message))
}

func (h *handler) record(operation string, start time.Time, err error) {
	h.metricsRecorder.Record(monitoring.CategorySwap, operation, start, err)
}
