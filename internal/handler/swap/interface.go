package swap

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
)

type IHandler interface {
	CreateSwap(c *gin.Context)
	SubmitTxHash(c *gin.Context)
	Verify(c *gin.Context)
	ApplyVerification(c *gin.Context)
	GetSwap(c *gin.Context)
	ListSwaps(c *gin.Context)
}

type SubmitTxHashRequest struct {
	MakerID string `json:"maker_id" binding:"required"`
	TxHash  string `json:"tx_hash" binding:"required"`
}

// ApplyVerificationRequest is pushed by a relayer that watched the TRC20 transfer.
type ApplyVerificationRequest struct {
	TxHash string                    `json:"tx_hash" binding:"required"`
	Status oracle.VerificationStatus `json:"status" binding:"required"`
}

type ListSwapsRequest struct {
	request.Page
	Account string `form:"account"`
	MakerID string `form:"maker_id"`
	Status  string `form:"status"`
}

type VerifyResponse struct {
	Result *oracle.VerificationResult `json:"result"`
	Swap   *model.SwapRecord          `json:"swap"`
}

type ListSwapsResponse struct {
	Total int64               `json:"total"`
	Swaps []*model.SwapRecord `json:"swaps"`
}
