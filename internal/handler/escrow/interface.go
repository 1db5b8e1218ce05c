package escrow

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type IHandler interface {
	Credit(c *gin.Context)
	Withdraw(c *gin.Context)
	GetAccount(c *gin.Context)
	ListLocks(c *gin.Context)
	GetLock(c *gin.Context)
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string"`
}

type AccountResponse struct {
	Account   string          `json:"account"`
	Available decimal.Decimal `json:"available" swaggertype:"string"`
	Locked    decimal.Decimal `json:"locked" swaggertype:"string"`
	// Total is available plus locked.
	Total decimal.Decimal `json:"total" swaggertype:"string"`
}
