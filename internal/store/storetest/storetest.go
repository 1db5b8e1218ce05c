// Package storetest opens throwaway sqlite databases with the full schema for package tests.
package storetest

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

// TB is the subset of testing.TB used here; ginkgo's GinkgoT() satisfies it too.
type TB interface {
	Helper()
	Fatalf(format string, args ...interface{})
	Cleanup(func())
}

// NewDB returns an isolated in-memory database. A single connection serializes
// transactions the way row locks do on postgres.
func NewDB(t TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}
