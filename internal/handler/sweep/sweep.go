package sweep

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/dwarvesf/escrow-backend/internal/sweeper"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type IHandler interface {
	Trigger(c *gin.Context)
}

type handler struct {
	sweeper sweeper.ISweeper
	logger  *logger.Logger
}

func New(sweeper sweeper.ISweeper, logger *logger.Logger) IHandler {
	return &handler{
		sweeper: sweeper,
		logger:  logger,
	}
}

// Trigger godoc
// @Summary Run a sweep pass
// @Description Admin only. Applies every due timeout and finalization now instead of waiting for the schedule
// @id triggerSweep
// @Tags Admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} view.Response[sweeper.Report]
// @Failure 401 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/sweep [post]
func (h *handler) Trigger(c *gin.Context) {
	report, err := h.sweeper.Sweep(c.Request.Context())
	if errors.Is(err, sweeper.ErrSweepInProgress) {
		c.JSON(http.StatusConflict, view.CreateResponse[any](nil, err, nil, "sweep already running"))
		return
	}
	if err != nil {
		h.logger.Error("[Trigger][Sweep]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](report, err, nil, "sweep failed"))
		return
	}

	h.logger.Info("[Trigger] manual sweep finished", map[string]string{
		"failed": strconv.Itoa(report.Failed()),
	})
	c.JSON(http.StatusOK, view.CreateResponse[any](report, nil, nil, ""))
}
