package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/internal/logger"
)

const failedDir = "failed"

// SpoolSource picks up *.json files dropped into a directory by an upstream
// parser. Files are moved to the processed directory on Ack and to failed/
// when they cannot be decoded.
type SpoolSource struct {
	log          logger.Logger
	dir          string
	processedDir string

	mu      sync.Mutex
	pending []string
}

func NewSpoolSource(log logger.Logger, cfg *config.SpoolConfig) (*SpoolSource, error) {
	if cfg == nil || cfg.Dir == "" {
		return nil, errors.New("report spool directory is not configured")
	}
	processed := cfg.ProcessedDir
	if !filepath.IsAbs(processed) {
		processed = filepath.Join(cfg.Dir, processed)
	}
	for _, dir := range []string{cfg.Dir, processed, filepath.Join(cfg.Dir, failedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	return &SpoolSource{
		log:          log,
		dir:          cfg.Dir,
		processedDir: processed,
	}, nil
}

func (s *SpoolSource) Name() string {
	return "spool"
}

// Fetch reads files in name order until limit reports are collected.
// Files read are held until Ack; a file is never split across batches.
func (s *SpoolSource) Fetch(ctx context.Context, limit int) ([]dto.RawReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	s.pending = s.pending[:0]
	var out []dto.RawReport
	for _, path := range files {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		reports, err := readReportFile(path)
		if err != nil {
			s.log.Warnf("Moving unreadable report file %s aside: %v", path, err)
			s.move(path, filepath.Join(s.dir, failedDir))
			continue
		}
		out = append(out, reports...)
		s.pending = append(s.pending, path)
	}
	return out, nil
}

// Ack moves the files of the last batch to the processed directory.
func (s *SpoolSource) Ack(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []string
	for _, path := range s.pending {
		if err := s.move(path, s.processedDir); err != nil {
			failed = append(failed, filepath.Base(path))
		}
	}
	s.pending = s.pending[:0]
	if len(failed) > 0 {
		return errors.Errorf("could not move %s to processed", strings.Join(failed, ", "))
	}
	return nil
}

func (s *SpoolSource) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read spool %s", s.dir)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (s *SpoolSource) move(path, dir string) error {
	err := os.Rename(path, filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		s.log.Errorf("Failed to move %s to %s: %v", path, dir, err)
	}
	return err
}
