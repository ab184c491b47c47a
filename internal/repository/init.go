package repository

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/models"
)

type Repositories struct {
	OrganizationRepository    interfaces.OrganizationRepository
	MonitoredDomainRepository interfaces.MonitoredDomainRepository
	AggregateReportRepository interfaces.AggregateReportRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		OrganizationRepository:    NewOrganizationRepository(db),
		MonitoredDomainRepository: NewMonitoredDomainRepository(db),
		AggregateReportRepository: NewAggregateReportRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB, log logger.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Organization{},
		&models.MonitoredDomain{},
		&models.AggregateReportRow{},
		&models.IngestedReport{},
	)
	if err == nil && dbConfig.TimescaleEnabled {
		err = createHypertable(db, log)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}

// createHypertable partitions the row table on date_begin. Safe to rerun.
func createHypertable(db *gorm.DB, log logger.Logger) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS timescaledb").Error; err != nil {
		return errors.Wrap(err, "timescaledb extension unavailable")
	}

	err := db.Exec(
		"SELECT create_hypertable(?::regclass, 'date_begin', if_not_exists => TRUE, migrate_data => TRUE)",
		models.AggregateReportRowTable,
	).Error
	if err != nil {
		return errors.Wrap(err, "create hypertable")
	}

	log.Infof("Hypertable ready on %s(date_begin)", models.AggregateReportRowTable)
	return nil
}
