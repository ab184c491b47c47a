package source

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/dto"
)

// FileSource reads a fixed list of JSON files. Used by the ingest command.
type FileSource struct {
	paths []string
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

func (s *FileSource) Name() string {
	return "files"
}

// Fetch returns at most limit reports; limit <= 0 means all of them.
func (s *FileSource) Fetch(ctx context.Context, limit int) ([]dto.RawReport, error) {
	var out []dto.RawReport
	for _, path := range s.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports, err := readReportFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, reports...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

func (s *FileSource) Ack(context.Context) error {
	return nil
}

func readReportFile(path string) ([]dto.RawReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	reports, err := DecodeReports(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return reports, nil
}
