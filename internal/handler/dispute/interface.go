package dispute

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IHandler interface {
	Open(c *gin.Context)
	Respond(c *gin.Context)
	SubmitEvidence(c *gin.Context)
	Withdraw(c *gin.Context)
	Vote(c *gin.Context)
	Advance(c *gin.Context)
	GetDispute(c *gin.Context)
	GetByBiz(c *gin.Context)
	ListDisputes(c *gin.Context)
	ListEvidence(c *gin.Context)
	ListVotes(c *gin.Context)
}

type SubmitEvidenceRequest struct {
	Party        string   `json:"party" binding:"required"`
	EvidenceCIDs []string `json:"evidence_cids" binding:"required,min=1"`
}

type WithdrawRequest struct {
	Complainant string `json:"complainant" binding:"required"`
}

type ListDisputesRequest struct {
	request.Page
	Account string `form:"account" binding:"required"`
	Domain  string `form:"domain"`
	Status  string `form:"status"`
}

// DisputeResponse exposes the seated panel next to the stored dispute.
type DisputeResponse struct {
	*model.Dispute
	Arbitrators []string `json:"arbitrators"`
}

type ListDisputesResponse struct {
	Total    int64              `json:"total"`
	Disputes []*DisputeResponse `json:"disputes"`
}
