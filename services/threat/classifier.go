package threat

import (
	"fmt"

	"github.com/customeros/dmarcstack/internal/enum"
	"github.com/customeros/dmarcstack/internal/models"
)

const StatusMissing = "missing"

const (
	summaryBothFailed = "Neither SPF nor DKIM aligned with %s. Traffic from %s is not authorized to send for this domain and may be spoofing it (disposition: %s)."
	summarySPFFailed  = "SPF did not align with %s but DKIM did, so DMARC passed. Check that %s is covered by the SPF record."
	summaryDKIMFailed = "DKIM did not align with %s but SPF did, so DMARC passed. Check that %s signs mail for this domain."
	summaryBothPassed = "SPF and DKIM both aligned with %s. %s is an authorized sender."
)

// Explanation describes one authentication mechanism of a row.
type Explanation struct {
	Aligned  bool   `json:"aligned"`
	Status   string `json:"status"`
	Domain   string `json:"domain,omitempty"`
	Selector string `json:"selector,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

type Classification struct {
	Severity enum.Severity `json:"severity"`
	SPF      Explanation   `json:"spf"`
	DKIM     Explanation   `json:"dkim"`
	Summary  string        `json:"summary"`
}

func Severity(spfAligned, dkimAligned bool) enum.Severity {
	switch {
	case spfAligned && dkimAligned:
		return enum.SeverityGreen
	case spfAligned || dkimAligned:
		return enum.SeverityYellow
	default:
		return enum.SeverityRed
	}
}

// Classify explains one row. It reads only the row's alignment flags and
// its first SPF and DKIM results.
func Classify(row *models.AggregateReportRow) Classification {
	if row == nil {
		return Classification{}
	}

	spf := explain(row.SPFAligned, row.SPFAuth)
	dkim := explain(row.DKIMAligned, row.DKIMAuth)
	severity := Severity(row.SPFAligned, row.DKIMAligned)

	return Classification{
		Severity: severity,
		SPF:      spf,
		DKIM:     dkim,
		Summary:  summary(row, dkim),
	}
}

func explain(aligned bool, check models.AuthCheck) Explanation {
	if !check.Present {
		return Explanation{Aligned: aligned, Status: StatusMissing}
	}
	status := check.Result
	if status == "" {
		status = "none"
	}
	return Explanation{
		Aligned:  aligned,
		Status:   status,
		Domain:   check.Domain,
		Selector: check.Selector,
		Scope:    check.Scope,
	}
}

func summary(row *models.AggregateReportRow, dkim Explanation) string {
	switch {
	case !row.SPFAligned && !row.DKIMAligned:
		return fmt.Sprintf(summaryBothFailed, row.HeaderFrom, row.SourceIP, row.Disposition)
	case !row.SPFAligned:
		return fmt.Sprintf(summarySPFFailed, row.HeaderFrom, row.SourceIP)
	case !row.DKIMAligned:
		signer := dkim.Domain
		if signer == "" {
			signer = row.SourceIP
		}
		return fmt.Sprintf(summaryDKIMFailed, row.HeaderFrom, signer)
	default:
		return fmt.Sprintf(summaryBothPassed, row.HeaderFrom, row.SourceIP)
	}
}
