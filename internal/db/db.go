package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mdmc/internal/config"
	"mdmc/internal/models"
	console "mdmc/internal/utils/logger"
)

var DB *gorm.DB
var log = console.New("DB")

const maxRetries = 5

// DSN builds the postgres connection string from cfg.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Host,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.Port,
		cfg.SSLMode,
	)
}

// Connect opens the pool, retrying while postgres comes up, and migrates the schema.
func Connect(cfg *config.Config) error {
	dsn := DSN(cfg.Database)

	gormLog := logger.Default.LogMode(logger.Warn)
	if log.IsDebug() {
		gormLog = logger.Default.LogMode(logger.Info)
	}

	log.Info("Connecting to database %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:                                   gormLog,
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              true,
			TranslateError:                           true,
		})
		if err == nil {
			log.Success("Connected to database")

			sqlDB, err := DB.DB()
			if err != nil {
				return log.Error("Failed to get underlying *sql.DB instance", err)
			}
			sqlDB.SetMaxOpenConns(100)
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetConnMaxLifetime(time.Hour)
			sqlDB.SetConnMaxIdleTime(30 * time.Minute)

			if err := Migrate(DB); err != nil {
				return log.Error("Failed to run migrations", err)
			}
			log.Success("Migrations completed")
			return nil
		}
		log.Warn("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		time.Sleep(5 * time.Second)
	}
	return log.Error("Giving up on database", fmt.Errorf("no connection after %d attempts: %w", maxRetries, err))
}

// Migrate creates or updates the accounts, leads and campaigns tables.
func Migrate(db *gorm.DB) error {
	log.Info("Running migrations...")
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.AutoMigrate(
		&models.Account{},
		&models.Lead{},
		&models.Campaign{},
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return DB
}
