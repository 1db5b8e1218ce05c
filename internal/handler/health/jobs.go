package health

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/sweeper"
)

const (
	jobsHealthy   = "healthy"
	jobsDegraded  = "degraded"
	jobsUnhealthy = "unhealthy"

	// consecutive sweeper failures after which deadlines count as unenforced
	sweeperFailureLimit = 3
	// missed sweeper intervals tolerated before the sweeper counts as late
	sweeperLagIntervals = 10
)

// Jobs handles the background jobs health check endpoint
// @Summary Background jobs health check
// @Description Reports the deadline sweeper and other scheduled jobs
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} JobsHealthResponse
// @Success 206 {object} JobsHealthResponse
// @Failure 503 {object} JobsHealthResponse
// @Router /api/v1/health/jobs [get]
func (h *HealthHandler) Jobs(c *gin.Context) {
	start := time.Now()
	response := JobsHealthResponse{
		Status:    jobsUnhealthy,
		Timestamp: start,
		Jobs:      make(map[string]monitoring.JobStatus),
	}

	if h.jobStatusManager != nil {
		response.Jobs = h.jobStatusManager.GetAllJobStatuses()
		response.Summary = h.jobStatusManager.GetJobsSummary()
		response.Status = h.jobsStatus(response.Jobs, response.Summary, start)
	}
	response.DurationMs = time.Since(start).Milliseconds()

	if response.Status != jobsHealthy {
		h.logger.Info("[HealthHandler][Jobs]", map[string]string{
			"status":         response.Status,
			"total_jobs":     strconv.Itoa(response.Summary.TotalJobs),
			"unhealthy_jobs": strconv.Itoa(response.Summary.UnhealthyJobs),
			"stalled_jobs":   strconv.Itoa(response.Summary.StalledJobs),
		})
	}

	switch response.Status {
	case jobsHealthy:
		c.JSON(http.StatusOK, response)
	case jobsDegraded:
		c.JSON(http.StatusPartialContent, response)
	default:
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// jobsStatus is unhealthy when any job is stalled or the sweeper keeps
// failing, degraded when some job failed its last run or the sweeper has
// not completed a pass for too long.
func (h *HealthHandler) jobsStatus(jobs map[string]monitoring.JobStatus, summary monitoring.JobsSummary, now time.Time) string {
	if summary.StalledJobs > 0 {
		return jobsUnhealthy
	}

	if sw, ok := jobs[sweeper.JobName]; ok {
		if sw.ConsecutiveFailures >= sweeperFailureLimit {
			return jobsUnhealthy
		}
		if h.sweeperLate(sw, now) {
			return jobsDegraded
		}
	}

	if summary.UnhealthyJobs > 0 {
		return jobsDegraded
	}
	return jobsHealthy
}

func (h *HealthHandler) sweeperLate(status monitoring.JobStatus, now time.Time) bool {
	if h.config == nil || status.LastSuccessTime.IsZero() {
		return false
	}

	schedule, err := cron.ParseStandard(h.config.Sweeper.Schedule)
	if err != nil {
		return false
	}
	next := schedule.Next(status.LastSuccessTime)
	interval := schedule.Next(next).Sub(next)

	return now.Sub(status.LastSuccessTime) > sweeperLagIntervals*interval
}
