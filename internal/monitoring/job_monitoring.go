package monitoring

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/utils/webhook"
)

// ErrJobSkipped is returned by a job function that declined to run, for
// example because a previous run of the same job still holds its lock.
var ErrJobSkipped = errors.New("job skipped")

type JobExecutionStatus string

const (
	JobStatusPending JobExecutionStatus = "pending"
	JobStatusRunning JobExecutionStatus = "running"
	JobStatusSuccess JobExecutionStatus = "success"
	JobStatusSkipped JobExecutionStatus = "skipped"
	JobStatusFailed  JobExecutionStatus = "failed"
	JobStatusStalled JobExecutionStatus = "stalled"
)

// JobStatus is the externally visible state of one scheduled job
type JobStatus struct {
	JobName             string                 `json:"job_name"`
	Status              JobExecutionStatus     `json:"status"`
	LastRunTime         time.Time              `json:"last_run_time"`
	LastSuccessTime     time.Time              `json:"last_success_time,omitempty"`
	LastDuration        time.Duration          `json:"last_duration_ms"`
	AverageExecution    time.Duration          `json:"average_execution_ms"`
	MaxExecutionTime    time.Duration          `json:"max_execution_ms"`
	SuccessCount        int64                  `json:"success_count"`
	SkippedCount        int64                  `json:"skipped_count"`
	FailureCount        int64                  `json:"failure_count"`
	ConsecutiveFailures int64                  `json:"consecutive_failures"`
	LastError           string                 `json:"last_error,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func (s *JobStatus) copy() JobStatus {
	out := *s
	out.Metadata = make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	return out
}

type JobsSummary struct {
	TotalJobs      int       `json:"total_jobs"`
	RunningJobs    int       `json:"running_jobs"`
	HealthyJobs    int       `json:"healthy_jobs"`
	UnhealthyJobs  int       `json:"unhealthy_jobs"`
	StalledJobs    int       `json:"stalled_jobs"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// JobStatusManager tracks scheduled jobs for the /health/jobs endpoint and
// flags runs that exceed the stalled threshold.
type JobStatusManager struct {
	mu               sync.RWMutex
	statuses         map[string]*JobStatus
	logger           *logger.Logger
	metrics          *BackgroundJobMetrics
	clock            clock.Clock
	stalledThreshold time.Duration
	stop             chan struct{}
	stopOnce         sync.Once
}

func NewJobStatusManager(logger *logger.Logger, metrics *BackgroundJobMetrics, clk clock.Clock) *JobStatusManager {
	jsm := &JobStatusManager{
		statuses:         make(map[string]*JobStatus),
		logger:           logger,
		metrics:          metrics,
		clock:            clk,
		stalledThreshold: 5 * time.Minute,
		stop:             make(chan struct{}),
	}

	go jsm.watchStalled(time.Minute)

	return jsm
}

func (jsm *JobStatusManager) RegisterJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	if _, exists := jsm.statuses[jobName]; exists {
		return
	}

	now := jsm.clock.Now()
	jsm.statuses[jobName] = &JobStatus{
		JobName:   jobName,
		Status:    JobStatusPending,
		Metadata:  make(map[string]interface{}),
		CreatedAt: now,
		UpdatedAt: now,
	}

	jsm.logger.Info("[JobStatusManager][RegisterJob]", map[string]string{
		"job_name": jobName,
	})
}

func (jsm *JobStatusManager) StartJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	now := jsm.clock.Now()
	status, exists := jsm.statuses[jobName]
	if !exists {
		status = &JobStatus{
			JobName:   jobName,
			Metadata:  make(map[string]interface{}),
			CreatedAt: now,
		}
		jsm.statuses[jobName] = status
	}
	status.Status = JobStatusRunning
	status.LastRunTime = now
	status.UpdatedAt = now

	jsm.metrics.activeJobs.Inc()
}

// CompleteJob records the outcome of the run started by StartJob. A nil err
// is a success, ErrJobSkipped a skipped run, anything else a failure.
func (jsm *JobStatusManager) CompleteJob(jobName string, err error, metadata map[string]interface{}) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	status, exists := jsm.statuses[jobName]
	if !exists || status.Status != JobStatusRunning && status.Status != JobStatusStalled {
		jsm.logger.Error("[JobStatusManager][CompleteJob] job is not running", map[string]string{
			"job_name": jobName,
		})
		return
	}
	jsm.metrics.activeJobs.Dec()

	now := jsm.clock.Now()
	duration := now.Sub(status.LastRunTime)
	status.UpdatedAt = now
	for k, v := range metadata {
		status.Metadata[k] = v
	}

	outcome := "success"
	switch {
	case errors.Is(err, ErrJobSkipped):
		// a skipped run does not move any health counters
		status.Status = JobStatusSkipped
		status.SkippedCount++
		outcome = "skipped"
		jsm.metrics.jobRuns.WithLabelValues(jobName, outcome).Inc()
		return

	case err != nil:
		status.Status = JobStatusFailed
		status.FailureCount++
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		status.Metadata["error_type"] = classifyJobError(err)
		outcome = "error"

		jsm.logger.Error("[JobStatusManager][CompleteJob] job failed", map[string]string{
			"job_name":             jobName,
			"duration":             duration.String(),
			"error":                err.Error(),
			"consecutive_failures": strconv.FormatInt(status.ConsecutiveFailures, 10),
		})

	default:
		status.Status = JobStatusSuccess
		status.SuccessCount++
		status.ConsecutiveFailures = 0
		status.LastError = ""
		status.LastSuccessTime = now
		delete(status.Metadata, "error_type")
	}

	runs := status.SuccessCount + status.FailureCount
	status.AverageExecution += (duration - status.AverageExecution) / time.Duration(runs)
	status.LastDuration = duration
	if duration > status.MaxExecutionTime {
		status.MaxExecutionTime = duration
	}

	jsm.metrics.jobRuns.WithLabelValues(jobName, outcome).Inc()
	jsm.metrics.jobDuration.WithLabelValues(jobName, outcome).Observe(duration.Seconds())
}

func (jsm *JobStatusManager) GetJobStatus(jobName string) (*JobStatus, bool) {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	status, exists := jsm.statuses[jobName]
	if !exists {
		return nil, false
	}
	out := jsm.view(status)
	return &out, true
}

func (jsm *JobStatusManager) GetAllJobStatuses() map[string]JobStatus {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	result := make(map[string]JobStatus, len(jsm.statuses))
	for name, status := range jsm.statuses {
		result[name] = jsm.view(status)
	}
	return result
}

// view reports a run as stalled as soon as it crosses the threshold, without
// waiting for the next detection tick. Caller holds the read lock.
func (jsm *JobStatusManager) view(status *JobStatus) JobStatus {
	out := status.copy()
	if out.Status == JobStatusRunning && jsm.clock.Now().Sub(out.LastRunTime) > jsm.stalledThreshold {
		out.Status = JobStatusStalled
	}
	return out
}

func (jsm *JobStatusManager) GetJobsSummary() JobsSummary {
	statuses := jsm.GetAllJobStatuses()

	summary := JobsSummary{
		TotalJobs:      len(statuses),
		LastUpdateTime: jsm.clock.Now(),
	}
	for _, status := range statuses {
		switch status.Status {
		case JobStatusRunning:
			summary.RunningJobs++
		case JobStatusStalled:
			summary.StalledJobs++
		case JobStatusFailed:
			summary.UnhealthyJobs++
		case JobStatusSuccess, JobStatusSkipped:
			if status.ConsecutiveFailures == 0 {
				summary.HealthyJobs++
			} else {
				summary.UnhealthyJobs++
			}
		}
	}
	return summary
}

func (jsm *JobStatusManager) Stop() {
	jsm.stopOnce.Do(func() { close(jsm.stop) })
}

func (jsm *JobStatusManager) watchStalled(every time.Duration) {
	ticker := jsm.clock.TickAfter(every)
	for {
		select {
		case <-jsm.stop:
			return
		case <-ticker:
			jsm.detectStalledJobs()
			ticker = jsm.clock.TickAfter(every)
		}
	}
}

func (jsm *JobStatusManager) detectStalledJobs() {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	now := jsm.clock.Now()
	stalled := 0
	for jobName, status := range jsm.statuses {
		if status.Status == JobStatusStalled {
			stalled++
			continue
		}
		if status.Status != JobStatusRunning || now.Sub(status.LastRunTime) <= jsm.stalledThreshold {
			continue
		}

		status.Status = JobStatusStalled
		status.UpdatedAt = now
		stalled++

		jsm.logger.Error("[JobStatusManager][detectStalledJobs] job stalled", map[string]string{
			"job_name":      jobName,
			"last_run_time": status.LastRunTime.Format(time.RFC3339),
			"running_for":   now.Sub(status.LastRunTime).String(),
		})
	}

	jsm.metrics.stalledJobs.Set(float64(stalled))
}

// JobFunc is one run of a scheduled job. The returned metadata is merged
// into the job's status so /health/jobs can show what the last run did.
type JobFunc func(ctx context.Context) (map[string]interface{}, error)

// InstrumentedJob runs a JobFunc with a timeout, panic recovery and status
// tracking. It is handed to cron as-is.
type InstrumentedJob struct {
	jobName       string
	jobFunc       JobFunc
	statusManager *JobStatusManager
	logger        *logger.Logger
	timeout       time.Duration
	webhookClient *webhook.Client
	webhookURL    string
}

func NewInstrumentedJob(
	jobName string,
	jobFunc JobFunc,
	statusManager *JobStatusManager,
	logger *logger.Logger,
	timeout time.Duration,
) *InstrumentedJob {
	statusManager.RegisterJob(jobName)

	return &InstrumentedJob{
		jobName:       jobName,
		jobFunc:       jobFunc,
		statusManager: statusManager,
		logger:        logger,
		timeout:       timeout,
	}
}

// WithUptimeWebhook pings url after every successful run. Skipped and failed
// runs do not ping, so the monitor alerts when the job stops doing work.
func (ij *InstrumentedJob) WithUptimeWebhook(client *webhook.Client, url string) *InstrumentedJob {
	ij.webhookClient = client
	ij.webhookURL = url
	return ij
}

type jobOutcome struct {
	metadata map[string]interface{}
	err      error
}

func (ij *InstrumentedJob) Execute() {
	ij.statusManager.StartJob(ij.jobName)

	ctx, cancel := context.WithTimeout(context.Background(), ij.timeout)
	defer cancel()

	done := make(chan jobOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ij.logger.Error("[InstrumentedJob][Execute] job panicked", map[string]string{
					"job_name": ij.jobName,
					"panic":    fmt.Sprint(r),
				})
				done <- jobOutcome{
					err: fmt.Errorf("job panicked: %v", r),
					metadata: map[string]interface{}{
						"panic":       fmt.Sprint(r),
						"stack_trace": string(debug.Stack()),
					},
				}
			}
		}()
		metadata, err := ij.jobFunc(ctx)
		done <- jobOutcome{metadata: metadata, err: err}
	}()

	var out jobOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = jobOutcome{
			err:      fmt.Errorf("job timeout after %v", ij.timeout),
			metadata: map[string]interface{}{"timeout": ij.timeout.String()},
		}
		ij.statusManager.metrics.jobTimeouts.WithLabelValues(ij.jobName).Inc()
	}

	ij.statusManager.CompleteJob(ij.jobName, out.err, out.metadata)

	if out.err == nil && ij.webhookClient != nil {
		webhookCtx, webhookCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer webhookCancel()
		ij.webhookClient.CallUptimeWebhook(webhookCtx, ij.webhookURL)
	}
}

type BackgroundJobMetrics struct {
	jobDuration *prometheus.HistogramVec
	jobRuns     *prometheus.CounterVec
	activeJobs  prometheus.Gauge
	stalledJobs prometheus.Gauge
	jobTimeouts *prometheus.CounterVec
}

func NewBackgroundJobMetrics() *BackgroundJobMetrics {
	return &BackgroundJobMetrics{
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escrow_backend_background_job_duration_seconds",
				Help:    "Background job execution duration in seconds",
				Buckets: []float64{0.05, 0.25, 1, 5, 30, 60, 300},
			},
			[]string{"job_name", "status"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_background_job_runs_total",
				Help: "Total number of background job runs by outcome",
			},
			[]string{"job_name", "status"},
		),
		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "escrow_backend_background_jobs_active",
				Help: "Number of currently running background jobs",
			},
		),
		stalledJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "escrow_backend_background_jobs_stalled",
				Help: "Number of stalled background jobs",
			},
		),
		jobTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_job_timeouts_total",
				Help: "Total job timeouts",
			},
			[]string{"job_name"},
		),
	}
}

func (m *BackgroundJobMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.jobDuration,
		m.jobRuns,
		m.activeJobs,
		m.stalledJobs,
		m.jobTimeouts,
	)
}

func classifyJobError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gorm.ErrInvalidDB), errors.Is(err, gorm.ErrInvalidTransaction):
		return "database"
	case errors.Is(err, model.ErrExternalVerification):
		return "external_api"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "panicked"):
		return "panic"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "sql"):
		return "database"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return "network"
	default:
		return "unknown"
	}
}
