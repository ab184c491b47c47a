package handlers

import (
	"time"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/utils"
)

type APIHandlers struct {
	Analytics *AnalyticsHandler
	Rows      *RowsHandler
	Ingest    *IngestHandler
}

func InitHandlers(log logger.Logger, analytics interfaces.AnalyticsService, ingestion interfaces.IngestionService, cfg *config.AppConfig) *APIHandlers {
	return &APIHandlers{
		Analytics: NewAnalyticsHandler(analytics, utils.Now),
		Rows:      NewRowsHandler(analytics),
		Ingest:    NewIngestHandler(log, ingestion, cfg.IngestMaxBodyReports, cfg.IngestMaxBodyBytes),
	}
}

type clock func() time.Time
