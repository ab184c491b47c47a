package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	cron_config "github.com/customeros/dmarcstack/internal/cron/config"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:       &AppConfig{},
		TenantConfig:    &TenantConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		DatabaseConfig:  &DatabaseConfig{},
		SpoolConfig:     &SpoolConfig{},
		R2StorageConfig: &R2StorageConfig{},
		CronConfig:      &cron_config.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	if err = env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "error loading dmarcstack config")
	}
	if err = config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.TenantConfig.DefaultOrganizationSlug == "" {
		return errors.New("DEFAULT_ORGANIZATION_SLUG must not be empty")
	}
	if c.AppConfig.IngestMaxBodyReports <= 0 {
		return errors.New("INGEST_MAX_BODY_REPORTS must be positive")
	}
	if c.AppConfig.IngestMaxBodyBytes <= 0 {
		return errors.New("INGEST_MAX_BODY_BYTES must be positive")
	}
	r2 := c.R2StorageConfig
	if r2.ArchiveEnabled && (r2.AccountID == "" || r2.AccessKeyID == "" || r2.AccessKeySecret == "") {
		return errors.New("report archive enabled without Cloudflare R2 credentials")
	}
	return nil
}
