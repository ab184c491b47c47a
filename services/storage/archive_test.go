package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/dto"
)

type memoryStorage struct {
	objects     map[string][]byte
	contentType map[string]string
	err         error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (m *memoryStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	m.objects[key] = data
	m.contentType[key] = contentType
	return nil
}

func (m *memoryStorage) Download(_ context.Context, key string) ([]byte, error) {
	return m.objects[key], nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func newTestArchive(storage *memoryStorage) *ReportArchive {
	archive := NewReportArchive(storage)
	archive.now = func() time.Time { return time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC) }
	return archive
}

func TestReportArchive_Archive(t *testing.T) {
	storage := newMemoryStorage()
	archive := newTestArchive(storage)
	report := dto.RawReport{"report_metadata": map[string]any{"report_id": "abc"}}

	key, err := archive.Archive(context.Background(), "abc", report)

	require.NoError(t, err)
	assert.Equal(t, "reports/2024/abc.json", key)
	assert.Equal(t, "application/json", storage.contentType[key])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(storage.objects[key], &decoded))
	assert.Equal(t, "abc", decoded["report_metadata"].(map[string]any)["report_id"])
}

func TestReportArchive_KeyWithoutReportID(t *testing.T) {
	archive := newTestArchive(newMemoryStorage())

	key, err := archive.Archive(context.Background(), "", dto.RawReport{})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "reports/2024/"))
	assert.True(t, strings.HasSuffix(key, ".json"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(key, "reports/2024/"), ".json"), 36)
}

func TestReportArchive_SanitizesKey(t *testing.T) {
	archive := newTestArchive(newMemoryStorage())

	key, err := archive.Archive(context.Background(), "google.com!123/../x", dto.RawReport{})

	require.NoError(t, err)
	assert.Equal(t, "reports/2024/google.com_123_.._x.json", key)
}

func TestReportArchive_UploadError(t *testing.T) {
	storage := newMemoryStorage()
	storage.err = errors.New("bucket unavailable")

	_, err := newTestArchive(storage).Archive(context.Background(), "abc", dto.RawReport{})

	assert.ErrorContains(t, err, "bucket unavailable")
}

func TestNewR2ReportArchive_Disabled(t *testing.T) {
	archive, err := NewR2ReportArchive(&config.R2StorageConfig{ArchiveEnabled: false})

	require.NoError(t, err)
	assert.Nil(t, archive)
}
