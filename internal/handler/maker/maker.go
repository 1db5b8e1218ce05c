package maker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/store/makerprofile"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type handler struct {
	makers          maker.IMaker
	logger          *logger.Logger
	metricsRecorder *monitoring.BusinessMetricsRecorder
}

func New(makers maker.IMaker, logger *logger.Logger, metricsRecorder *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		makers:          makers,
		logger:          logger,
		metricsRecorder: metricsRecorder,
	}
}

// Register godoc
// @Summary Register maker
// @Description Registers a market maker with its premiums and payment channel
// @id registerMaker
// @Tags Maker
// @Accept json
// @Produce json
// @Param request body maker.RegisterRequest true "Maker profile"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 400 {object} view.ErrorResponse
// @Router /makers [post]
func (h *handler) Register(c *gin.Context) {
	var req maker.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[Register][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	profile, err := h.makers.Register(c.Request.Context(), req)
	h.record("register", start, err)
	if err != nil {
		h.fail(c, "Register", err, req, "failed to register maker")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](profile, nil, nil, ""))
}

// Update godoc
// @Summary Update maker profile
// @Description Changes only the fields present in the body
// @id updateMaker
// @Tags Maker
// @Accept json
// @Produce json
// @Param id path string true "Maker ID"
// @Param request body maker.UpdateRequest true "Changed fields"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /makers/{id} [put]
func (h *handler) Update(c *gin.Context) {
	var req maker.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[Update][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	profile, err := h.makers.UpdateProfile(c.Request.Context(), c.Param("id"), req)
	h.record("update", start, err)
	if err != nil {
		h.fail(c, "Update", err, req, "failed to update maker")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](profile, nil, nil, ""))
}

// Pause godoc
// @Summary Pause maker service
// @id pauseMaker
// @Tags Maker
// @Produce json
// @Param id path string true "Maker ID"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 404 {object} view.ErrorResponse
// @Router /makers/{id}/pause [post]
func (h *handler) Pause(c *gin.Context) {
	h.toggle(c, "pause", h.makers.Pause)
}

// Resume godoc
// @Summary Resume maker service
// @id resumeMaker
// @Tags Maker
// @Produce json
// @Param id path string true "Maker ID"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 404 {object} view.ErrorResponse
// @Router /makers/{id}/resume [post]
func (h *handler) Resume(c *gin.Context) {
	h.toggle(c, "resume", h.makers.Resume)
}

// Suspend godoc
// @Summary Suspend maker
// @Description Admin only. A suspended maker cannot take new orders or swaps
// @id suspendMaker
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param id path string true "Maker ID"
// @Param request body SuspendRequest true "Reason"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Router /admin/makers/{id}/suspend [post]
func (h *handler) Suspend(c *gin.Context) {
	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	profile, err := h.makers.Suspend(c.Request.Context(), c.Param("id"), req.Reason)
	h.record("suspend", start, err)
	if err != nil {
		h.fail(c, "Suspend", err, req, "failed to suspend maker")
		return
	}

	h.logger.Info("[Suspend] maker suspended", map[string]string{
		"maker_id": profile.ID,
		"reason":   req.Reason,
	})
	c.JSON(http.StatusOK, view.CreateResponse[any](profile, nil, nil, ""))
}

// Unsuspend godoc
// @Summary Lift maker suspension
// @id unsuspendMaker
// @Tags Admin
// @Produce json
// @Security AdminToken
// @Param id path string true "Maker ID"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 401 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /admin/makers/{id}/unsuspend [post]
func (h *handler) Unsuspend(c *gin.Context) {
	h.toggle(c, "unsuspend", h.makers.Unsuspend)
}

// GetMaker godoc
// @Summary Get maker profile
// @id getMaker
// @Tags Maker
// @Produce json
// @Param id path string true "Maker ID"
// @Success 200 {object} view.Response[model.MakerProfile]
// @Failure 404 {object} view.ErrorResponse
// @Router /makers/{id} [get]
func (h *handler) GetMaker(c *gin.Context) {
	profile, err := h.makers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "GetMaker", err, nil, "failed to get maker")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](profile, nil, nil, ""))
}

// ListMakers godoc
// @Summary List makers
// @id listMakers
// @Tags Maker
// @Produce json
// @Param active_only query bool false "Only makers accepting orders"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} view.Response[ListMakersResponse]
// @Router /makers [get]
func (h *handler) ListMakers(c *gin.Context) {
	var req ListMakersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	req.Normalize()

	makers, total, err := h.makers.List(c.Request.Context(), makerprofile.ListFilter{
		ActiveOnly: req.ActiveOnly,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.fail(c, "ListMakers", err, req, "failed to list makers")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](ListMakersResponse{Total: total, Makers: makers}, nil, nil, ""))
}

// Quote godoc
// @Summary Quote a maker price
// @Description Prices the amount with the maker's premium for the side, rounded down
// @id quoteMaker
// @Tags Maker
// @Produce json
// @Param id path string true "Maker ID"
// @Param side query string true "buy or sell"
// @Param amount query string true "Base amount"
// @Success 200 {object} view.Response[maker.Quote]
// @Failure 400 {object} view.ErrorResponse
// @Router /makers/{id}/quote [get]
func (h *handler) Quote(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		err = model.Validationf("invalid amount %q", c.Query("amount"))
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid request"))
		return
	}

	side := maker.Side(c.Query("side"))
	quote, err := h.makers.Quote(c.Request.Context(), c.Param("id"), side, amount)
	if err != nil {
		h.fail(c, "Quote", err, nil, "failed to quote")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](quote, nil, nil, ""))
}

func (h *handler) toggle(c *gin.Context, op string, fn func(ctx context.Context, id string) (*model.MakerProfile, error)) {
	start := time.Now()
	profile, err := fn(c.Request.Context(), c.Param("id"))
	h.record(op, start, err)
	if err != nil {
		h.fail(c, op, err, nil, "failed to "+op+" maker")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](profile, nil, nil, ""))
}

func (h *handler) fail(c *gin.Context, op string, err error, req any, message string) {
	status := view.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("["+op+"]", map[string]string{
			"maker_id": c.Param("id"),
			"error":    err.Error(),
		})
	}
	c.JSON(status, view.CreateResponse[any](nil, err, req, message))
}

func (h *handler) record(operation string, start time.Time, err error) {
	h.metricsRecorder.Record(monitoring.CategoryMaker, operation, start, err)
}
