package dispute

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/dispute"
	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	disputestore "github.com/dwarvesf/escrow-backend/internal/store/dispute"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type handler struct {
	disputes        dispute.IDispute
	logger          *logger.Logger
	metricsRecorder *monitoring.BusinessMetricsRecorder
}

func New(disputes dispute.IDispute, logger *logger.Logger, metricsRecorder *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		disputes:        disputes,
		logger:          logger,
		metricsRecorder: metricsRecorder,
	}
}

// Open godoc
// @Summary Open dispute
// @Description Freezes the disputed order, swap or escrow and locks the complainant's deposit
// @id openDispute
// @Tags Dispute
// @Accept json
// @Produce json
// @Param request body dispute.OpenRequest true "Dispute"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 402 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /disputes [post]
func (h *handler) Open(c *gin.Context) {
	var req dispute.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[Open][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	start := time.Now()
	d, err := h.disputes.Open(c.Request.Context(), req)
	h.record("open", start, err)
	if err != nil {
		h.fail(c, "Open", err, req, "failed to open dispute")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// Respond godoc
// @Summary Respond to dispute
// @Description The respondent answers within the response window and matches the deposit
// @id respondDispute
// @Tags Dispute
// @Accept json
// @Produce json
// @Param id path int true "Dispute ID"
// @Param request body dispute.RespondRequest true "Response"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /disputes/{id}/respond [post]
func (h *handler) Respond(c *gin.Context) {
	var req dispute.RespondRequest
	id, ok := h.bind(c, "Respond", &req)
	if !ok {
		return
	}
	req.DisputeID = id

	start := time.Now()
	d, err := h.disputes.Respond(c.Request.Context(), req)
	h.record("respond", start, err)
	if err != nil {
		h.fail(c, "Respond", err, req, "failed to respond to dispute")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// SubmitEvidence godoc
// @Summary Submit evidence
// @Description Attaches IPFS CIDs from either party while the dispute is open to evidence
// @id submitDisputeEvidence
// @Tags Dispute
// @Accept json
// @Produce json
// @Param id path int true "Dispute ID"
// @Param request body SubmitEvidenceRequest true "Evidence"
// @Success 200 {object} view.Response[[]model.DisputeEvidence]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /disputes/{id}/evidence [post]
func (h *handler) SubmitEvidence(c *gin.Context) {
	var req SubmitEvidenceRequest
	id, ok := h.bind(c, "SubmitEvidence", &req)
	if !ok {
		return
	}

	start := time.Now()
	evidence, err := h.disputes.SubmitEvidence(c.Request.Context(), id, req.Party, req.EvidenceCIDs)
	h.record("submit_evidence", start, err)
	if err != nil {
		h.fail(c, "SubmitEvidence", err, req, "failed to submit evidence")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](evidence, nil, nil, ""))
}

// Withdraw godoc
// @Summary Withdraw dispute
// @Description The complainant withdraws before the respondent answers; the deposit is refunded
// @id withdrawDispute
// @Tags Dispute
// @Accept json
// @Produce json
// @Param id path int true "Dispute ID"
// @Param request body WithdrawRequest true "Complainant"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /disputes/{id}/withdraw [post]
func (h *handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	id, ok := h.bind(c, "Withdraw", &req)
	if !ok {
		return
	}

	start := time.Now()
	d, err := h.disputes.Withdraw(c.Request.Context(), id, req.Complainant)
	h.record("withdraw", start, err)
	if err != nil {
		h.fail(c, "Withdraw", err, req, "failed to withdraw dispute")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// Vote godoc
// @Summary Cast arbitration vote
// @Description A seated arbitrator votes once per round; the dispute resolves when the quorum agrees
// @id voteDispute
// @Tags Dispute
// @Accept json
// @Produce json
// @Param id path int true "Dispute ID"
// @Param request body dispute.VoteRequest true "Vote"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /disputes/{id}/votes [post]
func (h *handler) Vote(c *gin.Context) {
	var req dispute.VoteRequest
	id, ok := h.bind(c, "Vote", &req)
	if !ok {
		return
	}
	req.DisputeID = id

	start := time.Now()
	d, err := h.disputes.Vote(c.Request.Context(), req)
	h.record("vote", start, err)
	if err != nil {
		h.fail(c, "Vote", err, req, "failed to cast vote")
		return
	}

	if d.Status.IsTerminal() {
		h.logger.Info("[Vote] dispute resolved", map[string]string{
			"dispute_id": strconv.FormatUint(d.ID, 10),
			"status":     string(d.Status),
		})
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// Advance godoc
// @Summary Apply due deadline transition
// @Description Admin only. Runs the transition the sweeper would apply for the dispute's current deadline
// @id advanceDispute
// @Tags Admin
// @Produce json
// @Security AdminToken
// @Param id path int true "Dispute ID"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 401 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/disputes/{id}/advance [post]
func (h *handler) Advance(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid dispute id"))
		return
	}

	start := time.Now()
	d, err := h.disputes.Advance(c.Request.Context(), id)
	h.record("advance", start, err)
	if err != nil {
		h.fail(c, "Advance", err, nil, "failed to advance dispute")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// GetDispute godoc
// @Summary Get dispute
// @id getDispute
// @Tags Dispute
// @Produce json
// @Param id path int true "Dispute ID"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 404 {object} view.ErrorResponse
// @Router /disputes/{id} [get]
func (h *handler) GetDispute(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid dispute id"))
		return
	}

	d, err := h.disputes.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "GetDispute", err, nil, "failed to get dispute")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// GetByBiz godoc
// @Summary Get dispute of a business entity
// @Description Returns the active dispute, or the latest one when none is active
// @id getDisputeByBiz
// @Tags Dispute
// @Produce json
// @Param domain path string true "otc, swap, divination or matchmaking"
// @Param bizId path string true "Business ID"
// @Success 200 {object} view.Response[DisputeResponse]
// @Failure 404 {object} view.ErrorResponse
// @Router /disputes/biz/{domain}/{bizId} [get]
func (h *handler) GetByBiz(c *gin.Context) {
	domain := model.DisputeDomain(c.Param("domain"))
	if !domain.Valid() {
		err := model.Validationf("unknown domain %q", domain)
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid domain"))
		return
	}

	d, err := h.disputes.GetByBiz(c.Request.Context(), domain, c.Param("bizId"))
	if err != nil {
		h.fail(c, "GetByBiz", err, nil, "failed to get dispute")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](toDisputeResponse(d), nil, nil, ""))
}

// ListDisputes godoc
// @Summary List disputes of an account
// @id listDisputes
// @Tags Dispute
// @Produce json
// @Param account query string true "Complainant or respondent"
// @Param domain query string false "Domain"
// @Param status query string false "Dispute status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} view.Response[ListDisputesResponse]
// @Failure 400 {object} view.ErrorResponse
// @Router /disputes [get]
func (h *handler) ListDisputes(c *gin.Context) {
	var req ListDisputesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	req.Normalize()

	disputes, total, err := h.disputes.ListByAccount(c.Request.Context(), disputestore.ListFilter{
		Account: req.Account,
		Domain:  model.DisputeDomain(req.Domain),
		Status:  model.DisputeStatus(req.Status),
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		h.fail(c, "ListDisputes", err, req, "failed to list disputes")
		return
	}

	items := make([]*DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		items = append(items, toDisputeResponse(d))
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](ListDisputesResponse{Total: total, Disputes: items}, nil, nil, ""))
}

// ListEvidence godoc
// @Summary List dispute evidence
// @id listDisputeEvidence
// @Tags Dispute
// @Produce json
// @Param id path int true "Dispute ID"
// @Success 200 {object} view.Response[[]model.DisputeEvidence]
// @Router /disputes/{id}/evidence [get]
func (h *handler) ListEvidence(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid dispute id"))
		return
	}

	evidence, err := h.disputes.ListEvidence(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "ListEvidence", err, nil, "failed to list evidence")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](evidence, nil, nil, ""))
}

// ListVotes godoc
// @Summary List votes of the current round
// @id listDisputeVotes
// @Tags Dispute
// @Produce json
// @Param id path int true "Dispute ID"
// @Success 200 {object} view.Response[[]model.DisputeVote]
// @Router /disputes/{id}/votes [get]
func (h *handler) ListVotes(c *gin.Context) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid dispute id"))
		return
	}

	votes, err := h.disputes.ListVotes(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "ListVotes", err, nil, "failed to list votes")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](votes, nil, nil, ""))
}

func (h *handler) bind(c *gin.Context, op string, req any) (uint64, bool) {
	id, err := request.IDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid dispute id"))
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
			"dispute_id": c.Param("id"),
			"error":      err.Error(),
		})
	}
	c.JSON(status, view.CreateResponse[any](nil, err, req, message))
}

func (h *handler) record(operation string, start time.Time, err error) {
	h.metricsRecorder.Record(monitoring.CategoryDispute, operation, start, err)
}

func toDisputeResponse(d *model.Dispute) *DisputeResponse {
	return &DisputeResponse{
		Dispute:     d,
		Arbitrators: d.ArbitratorList(),
	}
}
