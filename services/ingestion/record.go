package ingestion

import (
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/customeros/dmarcstack/internal/enum"
	internal_errors "github.com/customeros/dmarcstack/internal/errors"
	"github.com/customeros/dmarcstack/internal/models"
	"github.com/customeros/dmarcstack/internal/utils"
)

const defaultSourceIP = "0.0.0.0"

var (
	countPaths            = []path{{"row", "count"}, {"count"}}
	policyEvaluatedPaths  = []path{{"row", "policy_evaluated"}, {"policy_evaluated"}}
	sourceIPPaths         = []path{{"source", "ip_address"}, {"row", "source_ip"}, {"source_ip"}}
	identifierHeaderPaths = []path{{"identifiers", "header_from"}}
	envelopeFromPaths     = []path{{"identifiers", "envelope_from"}}
	sourceHostnamePaths   = []path{{"source", "reverse_dns"}}
	sourceBaseDomainPaths = []path{{"source", "base_domain"}}
	countryCodePaths      = []path{{"source", "country"}}
)

// NormalizedRecord is one record with every field typed and defaulted.
type NormalizedRecord struct {
	PublishedDomain  string
	SourceIP         string
	SourceHostname   *string
	SourceBaseDomain *string
	CountryCode      *string
	MessageCount     int64
	Disposition      enum.Disposition
	SPFAligned       bool
	DKIMAligned      bool
	HeaderFrom       string
	IdentifierHeader *string
	EnvelopeFrom     *string
	DKIMDomains      []string
	AuthResults      map[string]any
	SPFAuth          models.AuthCheck
	DKIMAuth         models.AuthCheck
}

// NormalizeRecord flattens one raw record of a report; the report metadata
// block is accepted but not consulted. HeaderFrom is the published policy
// domain; the record's own identifiers.header_from is kept separately. Count and policy_evaluated are read
// from a nested row mapping first and from the record itself second. Missing
// blocks read as empty mappings; only a missing published domain is an error.
func NormalizeRecord(record, _, policy map[string]any) (*NormalizedRecord, error) {
	publishedDomain := PublishedDomain(policy)
	if publishedDomain == "" {
		return nil, internal_errors.ErrMissingPublishedDomain
	}
	if record == nil {
		record = map[string]any{}
	}

	alignment := firstMapping(record, path{"alignment"})
	authResults := firstMapping(record, path{"auth_results"})
	policyEvaluated := firstMapping(record, policyEvaluatedPaths...)

	var count int64
	if v, ok := firstValue(record, countPaths...); ok {
		count = asCount(v)
	}

	spfResults := asList(authResults["spf"])
	dkimResults := asList(authResults["dkim"])

	return &NormalizedRecord{
		PublishedDomain:  publishedDomain,
		SourceIP:         sourceIP(record),
		SourceHostname:   utils.StringPtrOrNil(firstString(record, sourceHostnamePaths...)),
		SourceBaseDomain: utils.StringPtrOrNil(firstString(record, sourceBaseDomainPaths...)),
		CountryCode:      utils.StringPtrOrNil(firstString(record, countryCodePaths...)),
		MessageCount:     count,
		Disposition:      enum.ParseDisposition(asString(policyEvaluated["disposition"])),
		SPFAligned:       asBool(alignment["spf"]),
		DKIMAligned:      asBool(alignment["dkim"]),
		HeaderFrom:       publishedDomain,
		IdentifierHeader: utils.StringPtrOrNil(strings.ToLower(firstString(record, identifierHeaderPaths...))),
		EnvelopeFrom:     utils.StringPtrOrNil(firstString(record, envelopeFromPaths...)),
		DKIMDomains:      dkimDomains(dkimResults),
		AuthResults:      authResults,
		SPFAuth:          firstAuthCheck(spfResults),
		DKIMAuth:         firstAuthCheck(dkimResults),
	}, nil
}

// PublishedDomain returns the lower-cased policy domain, or "" when absent.
func PublishedDomain(policy map[string]any) string {
	if policy == nil {
		return ""
	}
	return strings.ToLower(asString(policy["domain"]))
}

// ToRow attaches the report window and identifier.
func (n *NormalizedRecord) ToRow(domainID uint64, reportID *string, window Window) *models.AggregateReportRow {
	dkimDomains := pq.StringArray(n.DKIMDomains)
	if dkimDomains == nil {
		dkimDomains = pq.StringArray{}
	}
	return &models.AggregateReportRow{
		DateBegin:        window.Begin,
		DateEnd:          window.End,
		DomainID:         domainID,
		ReportID:         reportID,
		SourceIP:         n.SourceIP,
		SourceHostname:   n.SourceHostname,
		SourceBaseDomain: n.SourceBaseDomain,
		CountryCode:      n.CountryCode,
		MessageCount:     n.MessageCount,
		Disposition:      n.Disposition,
		SPFAligned:       n.SPFAligned,
		DKIMAligned:      n.DKIMAligned,
		HeaderFrom:       n.HeaderFrom,
		IdentifierHeader: n.IdentifierHeader,
		EnvelopeFrom:     n.EnvelopeFrom,
		DKIMDomains:      dkimDomains,
		AuthResults:      models.JSONMap(n.AuthResults),
		SPFAuth:          n.SPFAuth,
		DKIMAuth:         n.DKIMAuth,
		CreatedAt:        utils.Now(),
	}
}

// sourceIP skips candidates that are not IP addresses.
func sourceIP(record map[string]any) string {
	for _, p := range sourceIPPaths {
		v, ok := lookup(record, p)
		if !ok {
			continue
		}
		if ip := net.ParseIP(asString(v)); ip != nil {
			return ip.String()
		}
	}
	return defaultSourceIP
}

func dkimDomains(results []map[string]any) []string {
	domains := make([]string, 0, len(results))
	for _, result := range results {
		if domain := asString(result["domain"]); domain != "" {
			domains = append(domains, strings.ToLower(domain))
		}
	}
	return domains
}

func firstAuthCheck(results []map[string]any) models.AuthCheck {
	if len(results) == 0 {
		return models.AuthCheck{}
	}
	first := results[0]
	return models.AuthCheck{
		Present:  true,
		Domain:   strings.ToLower(asString(first["domain"])),
		Selector: asString(first["selector"]),
		Scope:    asString(first["scope"]),
		Result:   strings.ToLower(asString(first["result"])),
	}
}
