package database

import (
	"gorm.io/gorm"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/internal/logger"
)

func InitDatabase(dbConfig *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := NewConnection(dbConfig, log)
	if err != nil {
		log.Errorf("Failed to connect to the database: %v", err)
		return nil, err
	}
	log.Infof("Connected to database %s on %s:%s", dbConfig.DBName, dbConfig.Host, dbConfig.Port)
	return db, nil
}
