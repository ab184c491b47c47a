package repository

import (
	"errors"

	internal_errors "github.com/customeros/dmarcstack/internal/errors"
)

var (
	ErrDuplicateReport = internal_errors.ErrDuplicateReport
	ErrRowNotFound     = internal_errors.ErrRowNotFound
	ErrInvalidInput    = errors.New("invalid input parameters")
)
