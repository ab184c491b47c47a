package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/internal/logger"
)

func NewConnection(dbConfig *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	if err := validateConfig(dbConfig); err != nil {
		return nil, err
	}

	portInt, err := strconv.Atoi(dbConfig.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port number: %w", err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host, portInt, dbConfig.User, dbConfig.Password, dbConfig.DBName, dbConfig.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogLevel(dbConfig.LogLevel)),
		TranslateError: true,
	}

	var db *gorm.DB
	connect := func() error {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}

	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = dbConfig.ConnectTimeout
	notify := func(err error, wait time.Duration) {
		log.Warnf("Database not reachable, retrying in %s: %v", wait, err)
	}
	if err = backoff.RetryNotify(connect, retry, notify); err != nil {
		return nil, errors.Wrap(err, "database unavailable")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return db, nil
}

func gormLogLevel(level string) gormLogger.LogLevel {
	switch strings.ToUpper(level) {
	case "SILENT":
		return gormLogger.Silent
	case "ERROR":
		return gormLogger.Error
	case "INFO":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

func validateConfig(dbConfig *config.DatabaseConfig) error {
	switch {
	case dbConfig == nil:
		return errors.New("database config is nil")
	case dbConfig.Host == "":
		return errors.New("database host config is empty")
	case dbConfig.Port == "":
		return errors.New("database port config is empty")
	case dbConfig.User == "":
		return errors.New("database user config is empty")
	case dbConfig.Password == "":
		return errors.New("database password config is empty")
	case dbConfig.DBName == "":
		return errors.New("database name config is empty")
	case dbConfig.SSLMode == "":
		return errors.New("database SSLMode config is empty")
	}
	return nil
}
