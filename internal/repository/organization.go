package repository

import (
	"context"
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

type organizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) interfaces.OrganizationRepository {
	return &organizationRepository{db: db}
}

// GetOrCreate is keyed by slug; concurrent callers converge on one row.
func (r *organizationRepository) GetOrCreate(ctx context.Context, name, slug string) (*models.Organization, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OrganizationRepository.GetOrCreate")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("slug", slug)

	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		tracing.TraceErr(span, ErrInvalidInput)
		return nil, ErrInvalidInput
	}

	organization := models.Organization{
		Name:      name,
		Slug:      slug,
		CreatedAt: utils.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(&organization).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	var existing models.Organization
	err = r.db.WithContext(ctx).Where("slug = ?", slug).First(&existing).Error
	if err != nil {
		tracing.TraceErr(span, errors.Wrap(err, "db error"))
		return nil, err
	}

	return &existing, nil
}
