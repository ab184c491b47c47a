package source

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/dto"
)

// DecodeReports accepts a single report object, a list of reports, or an
// envelope of the form {"reports": [...]}. Numbers are kept as json.Number.
func DecodeReports(r io.Reader) ([]dto.RawReport, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read reports")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []dto.RawReport{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	if body[0] == '[' {
		var reports []dto.RawReport
		if err = decoder.Decode(&reports); err != nil {
			return nil, errors.Wrap(err, "decode report list")
		}
		return reports, nil
	}

	var object dto.RawReport
	if err = decoder.Decode(&object); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	if envelope, ok := object["reports"].([]any); ok && len(object) == 1 {
		reports := make([]dto.RawReport, 0, len(envelope))
		for _, item := range envelope {
			report, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Errorf("reports entry is %T, not an object", item)
			}
			reports = append(reports, report)
		}
		return reports, nil
	}
	return []dto.RawReport{object}, nil
}
