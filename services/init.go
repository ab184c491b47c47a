package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/repository"
	"github.com/customeros/dmarcstack/services/analytics"
	"github.com/customeros/dmarcstack/services/events"
	"github.com/customeros/dmarcstack/services/ingestion"
	"github.com/customeros/dmarcstack/services/source"
	"github.com/customeros/dmarcstack/services/storage"
)

type Services struct {
	IngestionService interfaces.IngestionService
	AnalyticsService interfaces.AnalyticsService
	ReportArchive    interfaces.ReportArchive
	// SpoolSource and EventsService are nil when not configured.
	SpoolSource   interfaces.ReportSource
	EventsService *events.EventsService
}

// InitServices wires the domain services. The broker connection is opened
// here; consuming starts once the server registers its listeners.
func InitServices(ctx context.Context, cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	archive, err := storage.NewR2ReportArchive(cfg.R2StorageConfig)
	if err != nil {
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(ctx, log, ingestion.PipelineDeps{
		Organizations: repos.OrganizationRepository,
		Domains:       repos.MonitoredDomainRepository,
		Reports:       repos.AggregateReportRepository,
		Archive:       archive,
	}, cfg.TenantConfig)
	if err != nil {
		return nil, err
	}

	services := &Services{
		IngestionService: pipeline,
		AnalyticsService: analytics.NewAnalyticsService(log, repos.MonitoredDomainRepository, repos.AggregateReportRepository),
		ReportArchive:    archive,
	}

	if cfg.SpoolConfig != nil && cfg.SpoolConfig.Dir != "" {
		spool, err := source.NewSpoolSource(log, cfg.SpoolConfig)
		if err != nil {
			return nil, errors.Wrap(err, "init report spool")
		}
		services.SpoolSource = spool
	}

	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, nil)
	if err != nil {
		return nil, errors.Wrap(err, "init events service")
	}
	services.EventsService = eventsService

	return services, nil
}

func (s *Services) Close() error {
	return s.EventsService.Close()
}
