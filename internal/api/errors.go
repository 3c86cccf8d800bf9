package api

import "codeberg.org/mutker/vehiclectl/internal/errors"

const (
	ErrServe        = errors.ErrorCode("api_serve_failed")
	ErrBadRequest   = errors.ErrInvalidArgument
	ErrNotAvailable = errors.ErrUnavailable
)
