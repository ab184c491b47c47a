package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/internal/utils"
)

type monitoredDomainRepository struct {
	db *gorm.DB
}

func NewMonitoredDomainRepository(db *gorm.DB) interfaces.MonitoredDomainRepository {
	return &monitoredDomainRepository{db: db}
}

func (r *monitoredDomainRepository) GetOrCreate(ctx context.Context, organizationID uint64, domainName string) (*models.MonitoredDomain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitoredDomainRepository.GetOrCreate")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("domain", domainName)

	domainName = strings.ToLower(strings.TrimSpace(domainName))
	if domainName == "" {
		tracing.TraceErr(span, ErrInvalidInput)
		return nil, ErrInvalidInput
	}

	now := utils.Now()
	domain := models.MonitoredDomain{
		OrganizationID: organizationID,
		DomainName:     domainName,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "domain_name"}}, DoNothing: true}).
		Create(&domain).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	var existing models.MonitoredDomain
	err = r.db.WithContext(ctx).Where("domain_name = ?", domainName).First(&existing).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	return &existing, nil
}

func (r *monitoredDomainRepository) GetByID(ctx context.Context, id uint64) (*models.MonitoredDomain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitoredDomainRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatUint(id, 10))

	var domain models.MonitoredDomain
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Where("id = ?", id).
		First(&domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	return &domain, nil
}

func (r *monitoredDomainRepository) List(ctx context.Context) ([]*models.MonitoredDomain, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitoredDomainRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var domains []*models.MonitoredDomain
	err := r.db.WithContext(ctx).
		Order("domain_name ASC").
		Find(&domains).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	return domains, nil
}
