package order

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/escrow-backend/internal/handler/request"
	"github.com/dwarvesf/escrow-backend/internal/model"
)

type IHandler interface {
	CreateOrder(c *gin.Context)
	MarkPaid(c *gin.Context)
	ConfirmReceipt(c *gin.Context)
	Cancel(c *gin.Context)
	GetOrder(c *gin.Context)
	ListOrders(c *gin.Context)
}

type CreateOrderRequest struct {
	Buyer      string          `json:"buyer" binding:"required"`
	Seller     string          `json:"seller" binding:"required"`
	Qty        decimal.Decimal `json:"qty" swaggertype:"string"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string"`
	TTLSeconds int64           `json:"ttl_seconds,omitempty" binding:"gte=0"`
}

type MarkPaidRequest struct {
	Buyer      string `json:"buyer" binding:"required"`
	PaymentRef string `json:"payment_ref" binding:"max=255"`
}

type ConfirmReceiptRequest struct {
	Seller string `json:"seller" binding:"required"`
}

type CancelRequest struct {
	Caller string `json:"caller" binding:"required"`
}

type ListOrdersRequest struct {
	request.Page
	Account string `form:"account" binding:"required"`
	State   string `form:"state"`
}

type ListOrdersResponse struct {
	Total  int64             `json:"total"`
	Orders []*model.OtcOrder `json:"orders"`
}
