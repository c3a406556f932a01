package database

import (
	"fmt"
	"sync"

	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// PostgresDSN prefers POSTGRES_DSN and otherwise assembles a key/value DSN
// from the individual settings.
func PostgresDSN(cfg *config.Config) string {
	if cfg.PostgresDSN != "" {
		return cfg.PostgresDSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.PostgresHost,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresDB,
		cfg.PostgresPort,
		cfg.PostgresSSLMode,
	)
}

// OpenPostgres opens a new handle for dsn. Loaders with their own DSN use
// this; services share GetPostgres.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to connect to PostgreSQL")
		return nil, err
	}
	return conn, nil
}

func GetPostgres() (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = OpenPostgres(PostgresDSN(config.Load()))
		if dbErr == nil {
			logger.Log.Info("Connected to PostgreSQL")
		}
	})

	return db, dbErr
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
