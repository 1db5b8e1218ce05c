// Package request holds binding helpers shared by the HTTP handlers.
package request

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Page struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize clamps the page to the API limits.
func (p *Page) Normalize() {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// IDParam parses a numeric path parameter.
func IDParam(c *gin.Context, name string) (uint64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, model.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}
