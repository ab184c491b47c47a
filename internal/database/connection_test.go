package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	gormLogger "gorm.io/gorm/logger"

	"github.com/customeros/dmarcstack/config"
)

func TestValidateConfig(t *testing.T) {
	valid := config.DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "dmarc",
		Password: "dmarc",
		DBName:   "dmarc",
		SSLMode:  "disable",
	}
	assert.NoError(t, validateConfig(&valid))
	assert.Error(t, validateConfig(nil))

	missingHost := valid
	missingHost.Host = ""
	assert.Error(t, validateConfig(&missingHost))

	missingSSL := valid
	missingSSL.SSLMode = ""
	assert.Error(t, validateConfig(&missingSSL))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormLogger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, gormLogger.Warn, gormLogLevel("unknown"))
	assert.Equal(t, gormLogger.Info, gormLogLevel("info"))
	assert.Equal(t, gormLogger.Silent, gormLogLevel("silent"))
}
