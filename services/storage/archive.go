package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/internal/utils"
	"github.com/customeros/dmarcstack/services/storage/aws_client"
)

const reportContentType = "application/json"

// ReportArchive keeps a JSON copy of every ingested report in object storage.
type ReportArchive struct {
	storage interfaces.StorageService
	now     func() time.Time
}

func NewReportArchive(storage interfaces.StorageService) *ReportArchive {
	return &ReportArchive{storage: storage, now: utils.Now}
}

// NewR2ReportArchive returns nil when archiving is disabled.
func NewR2ReportArchive(cfg *config.R2StorageConfig) (interfaces.ReportArchive, error) {
	if cfg == nil || !cfg.ArchiveEnabled {
		return nil, nil
	}
	client, err := aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       cfg.AccountID,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create r2 client")
	}
	return NewReportArchive(NewStorageService(client, cfg.ReportArchiveBucket)), nil
}

func (a *ReportArchive) Archive(ctx context.Context, reportID string, report dto.RawReport) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportArchive.Archive")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	body, err := json.Marshal(report)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "encode report")
	}

	key := a.objectKey(reportID)
	span.SetTag("storage.key", key)
	if err = a.storage.Upload(ctx, key, body, reportContentType); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return key, nil
}

// objectKey is reports/<year>/<name>.json; reports without an id get a uuid.
func (a *ReportArchive) objectKey(reportID string) string {
	name := sanitizeKeyPart(reportID)
	if name == "" {
		name = uuid.NewString()
	}
	return fmt.Sprintf("reports/%d/%s.json", a.now().Year(), name)
}

func sanitizeKeyPart(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.' || r == '@':
			return r
		default:
			return '_'
		}
	}, s)
}
