package pgstore

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

func New(appConfig *config.AppConfig, logger *logger.Logger) *gorm.DB {
	db, err := connectPostgres(appConfig)
	if err != nil {
		logger.Fatal("failed to connect to postgres", map[string]string{
			"error": err.Error(),
		})
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get sql db", map[string]string{
			"error": err.Error(),
		})
	}
	sqlDB.SetMaxOpenConns(appConfig.Postgres.MaxOpenConns)
	sqlDB.SetMaxIdleConns(appConfig.Postgres.MaxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if appConfig.Postgres.AutoMigrate {
		if err := db.AutoMigrate(model.All()...); err != nil {
			logger.Fatal("failed to auto migrate", map[string]string{
				"error": err.Error(),
			})
		}
	}

	logger.Info("database connected", map[string]string{
		"host": appConfig.Postgres.Host,
		"name": appConfig.Postgres.Name,
	})
	return db
}

func connectPostgres(appConfig *config.AppConfig) (*gorm.DB, error) {
	ds := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		appConfig.Postgres.Host,
		appConfig.Postgres.User,
		appConfig.Postgres.Pass,
		appConfig.Postgres.Name,
		appConfig.Postgres.Port,
		appConfig.Postgres.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(ds),
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				SingularTable: false,
			},
			// unique violations surface as gorm.ErrDuplicatedKey
			TranslateError: true,
		})
	if err != nil {
		return nil, err
	}

	return db, nil
}
