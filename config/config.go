package config

import (
	"time"

	cron_config "github.com/customeros/dmarcstack/internal/cron/config"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/tracing"
)

type AppConfig struct {
	APIPort                  string `env:"PORT,required" envDefault:"12222"`
	APIKey                   string `env:"API_KEY,required,notEmpty"`
	RabbitMQURL              string `env:"RABBITMQ_URL"`
	IngestRateLimitPerMinute int    `env:"INGEST_RATE_LIMIT_PER_MINUTE" envDefault:"6"`
	IngestMaxBodyReports     int    `env:"INGEST_MAX_BODY_REPORTS" envDefault:"500"`
	IngestMaxBodyBytes       int64  `env:"INGEST_MAX_BODY_BYTES" envDefault:"33554432"`
}

// TenantConfig names the organization new monitored domains are filed under.
type TenantConfig struct {
	DefaultOrganizationName string `env:"DEFAULT_ORGANIZATION_NAME" envDefault:"Unassigned"`
	DefaultOrganizationSlug string `env:"DEFAULT_ORGANIZATION_SLUG" envDefault:"unassigned"`
}

type DatabaseConfig struct {
	Host             string        `env:"DMARC_POSTGRES_HOST,required"`
	Port             string        `env:"DMARC_POSTGRES_PORT,required"`
	User             string        `env:"DMARC_POSTGRES_USER,required"`
	DBName           string        `env:"DMARC_POSTGRES_DB_NAME,required"`
	Password         string        `env:"DMARC_POSTGRES_PASSWORD,required"`
	MaxConn          int           `env:"DMARC_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn      int           `env:"DMARC_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime  int           `env:"DMARC_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel         string        `env:"DMARC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode          string        `env:"DMARC_POSTGRES_SSL_MODE" envDefault:"require"`
	ConnectTimeout   time.Duration `env:"DMARC_POSTGRES_CONNECT_TIMEOUT" envDefault:"2m"`
	TimescaleEnabled bool          `env:"DMARC_TIMESCALE_ENABLED" envDefault:"true"`
}

type SpoolConfig struct {
	Dir          string `env:"REPORT_SPOOL_DIR"`
	ProcessedDir string `env:"REPORT_SPOOL_PROCESSED_DIR" envDefault:"processed"`
	BatchLimit   int    `env:"REPORT_SPOOL_BATCH_LIMIT" envDefault:"100"`
}

type R2StorageConfig struct {
	ArchiveEnabled      bool   `env:"REPORT_ARCHIVE_ENABLED" envDefault:"false"`
	AccountID           string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID         string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret     string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	ReportArchiveBucket string `env:"BUCKET_NAME_REPORT_ARCHIVE" envDefault:"dmarc-reports"`
}

type Config struct {
	AppConfig       *AppConfig
	TenantConfig    *TenantConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	DatabaseConfig  *DatabaseConfig
	SpoolConfig     *SpoolConfig
	R2StorageConfig *R2StorageConfig
	CronConfig      *cron_config.Config
}
