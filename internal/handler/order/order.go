package order

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/otc"
	"github.com/dwarvesf/escrow-backend/internal/store/otcorder"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type handler struct {
	otc             otc.IOtc
	logger          *logger.Logger
	metricsRecorder *monitoring.BusinessMetricsRecorder
}

func New(otc otc.IOtc, logger *logger.Logger, metricsRecorder *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		otc:             otc,
		logger:          logger,
		metricsRecorder: metricsRecorder,
	}
}

// CreateOrder godoc
// @Summary Create OTC order
// @Description Locks the seller's qty in escrow until the buyer pays off-ledger
// @id createOrder
// @Tags Order
// @Accept json
// @Produce json
// @Param request body CreateOrderRequest true "Order"
// @Success 200 {object} view.Response[model.OtcOrder]
// @Failure 400 {object} view.ErrorResponse
// @Failure 402 {object} view.ErrorResponse
// @Router /orders [post]
func (h *handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[CreateOrder][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	order, err := h.otc.CreateOrder(c.Request.Context(), otc.CreateOrderRequest{
		Buyer:  req.Buyer,
		Seller: req.Seller,
		Qty:    req.Qty,
		Amount: req.Amount,
		TTL:    time.Duration(req.TTLSeconds) * time.Second,
	})
	h.record("create", start, err)
	if err != nil {
		h.fail(c, "CreateOrder", err, req, "failed to create order")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](order, nil, nil, ""))
}

// MarkPaid godoc
// @Summary Mark OTC order paid
// @Description Buyer records the off-ledger payment before the order expires
// @id markOrderPaid
// @Tags Order
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param request body MarkPaidRequest true "Payment"
// @Success 200 {object} view.Response[model.OtcOrder]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /orders/{id}/paid [post]
func (h *handler) MarkPaid(c *gin.Context) {
	var req MarkPaidRequest
	id, ok := h.bind(c, "MarkPaid", &req)
	if !ok {
		return
	}

	start := time.Now()
	order, err := h.otc.MarkPaid(c.Request.Context(), id, req.Buyer, req.PaymentRef)
	h.record("mark_paid", start, err)
	if err != nil {
		h.fail(c, "MarkPaid", err, req, "failed to mark order paid")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](order, nil, nil, ""))
}

// ConfirmReceipt godoc
// @Summary Confirm payment receipt
// @Description Seller confirms the payment; the qty is released to the buyer once the confirmation grace elapses
// @id confirmOrderReceipt
// @Tags Order
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param request body ConfirmReceiptRequest true "Seller"
// @Success 200 {object} view.Response[model.OtcOrder]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /orders/{id}/confirm [post]
func (h *handler) ConfirmReceipt(c *gin.Context) {
	var req ConfirmReceiptRequest
	id, ok := h.bind(c, "ConfirmReceipt", &req)
	if !ok {
		return
	}

	start := time.Now()
	order, err := h.otc.ConfirmReceipt(c.Request.Context(), id, req.Seller)
	h.record("confirm_receipt", start, err)
	if err != nil {
		h.fail(c, "ConfirmReceipt", err, req, "failed to confirm receipt")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](order, nil, nil, ""))
}

// Cancel godoc
// @Summary Cancel OTC order
// @Description Refunds the seller; allowed before payment for either party and for the buyer until the seller confirms
// @id cancelOrder
// @Tags Order
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param request body CancelRequest true "Caller"
// @Success 200 {object} view.Response[model.OtcOrder]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /orders/{id}/cancel [post]
func (h *handler) Cancel(c *gin.Context) {
	var req CancelRequest
	id, ok := h.bind(c, "Cancel", &req)
	if !ok {
		return
	}

	start := time.Now()
	order, err := h.otc.Cancel(c.Request.Context(), id, req.Caller)
	h.record("cancel", start, err)
	if err != nil {
		h.fail(c, "Cancel", err, req, "failed to cancel order")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](order, nil, nil, ""))
}

// GetOrder godoc
// @Summary Get OTC order
// @id getOrder
// @Tags Order
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} view.Response[model.OtcOrder]
// @Failure 404 {object} view.ErrorResponse
// @Router /orders/{id} [get]
func (h *handler) GetOrder(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid order id"))
		return
	}

	order, err := h.otc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "GetOrder", err, nil, "failed to get order")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](order, nil, nil, ""))
}

// ListOrders godoc
// @Summary List OTC orders of an account
// @id listOrders
// @Tags Order
// @Produce json
// @Param account query string true "Buyer or seller account"
// @Param state query string false "Order state"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} view.Response[ListOrdersResponse]
// @Failure 400 {object} view.ErrorResponse
// @Router /orders [get]
func (h *handler) ListOrders(c *gin.Context) {
	var req ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	req.Normalize()

	orders, total, err := h.otc.ListByAccount(c.Request.Context(), otcorder.ListFilter{
		Account: req.Account,
		State:   model.OtcOrderState(req.State),
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		h.fail(c, "ListOrders", err, req, "failed to list orders")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](ListOrdersResponse{Total: total, Orders: orders}, nil, nil, ""))
}

// bind parses the order id and the JSON body of a transition request.
func (h *handler) bind(c *gin.Context, op string, req any) (uint64, bool) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid order id"))
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
			"error": err.Error(),
		})
	}
	c.JSON(status, view.CreateResponse[any](nil, err, req, message))
}

func (h *handler) record(operation string, start time.Time, err error) {
	h.metricsRecorder.Record(monitoring.CategoryOrder, operation, start, err)
}
