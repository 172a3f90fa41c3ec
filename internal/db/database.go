package db

import (
	"log"

	"moveregistry-backend/internal/config"
	"moveregistry-backend/internal/metrics"
	"moveregistry-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")
	metrics.DBConnectionStatus.Set(1)

	if sqlDB, err := DB.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		metrics.DBConnectionPoolSize.Set(20)
	}

	if err := DB.AutoMigrate(
		&models.MintedMove{},
		&models.MintAttempt{},
		&models.RoyaltyEvent{},
		&models.AdminUser{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("✅ Database schema migrated successfully")
}
