package main

import (
	"github.com/dwarvesf/escrow-backend/internal/server"
)

// @title Escrow Backend API
// @version 1.0
// @description OTC orders, maker swaps and disputes settled through a shared escrow.
// @BasePath /api/v1
// @securityDefinitions.apikey AdminToken
// @in header
// @name X-Admin-Token
func main() {
	server.Init()
}
