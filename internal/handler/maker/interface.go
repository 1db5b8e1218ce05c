package maker

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IHandler interface {
	Register(c *gin.Context)
	Update(c *gin.Context)
	Pause(c *gin.Context)
	Resume(c *gin.Context)
	Suspend(c *gin.Context)
	Unsuspend(c *gin.Context)
	GetMaker(c *gin.Context)
	ListMakers(c *gin.Context)
	Quote(c *gin.Context)
}

type SuspendRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

type ListMakersRequest struct {
	request.Page
	ActiveOnly bool `form:"active_only"`
}

type ListMakersResponse struct {
	Total  int64                 `json:"total"`
	Makers []*model.MakerProfile `json:"makers"`
}
