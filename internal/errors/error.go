package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrInvalidInput      = errors.New("invalid input")

	// ingestion errors
	ErrMalformedReport        = errors.New("malformed report")
	ErrMissingPublishedDomain = errors.New("policy_published.domain is missing")
	ErrIngestionInProgress    = errors.New("ingestion run already in progress")
	ErrDuplicateReport        = errors.New("report already ingested")

	// analytics errors
	ErrDomainNotFound = errors.New("domain not found")
	ErrRowNotFound    = errors.New("report row not found")
	ErrInvalidWindow  = errors.New("invalid reporting window")
)
