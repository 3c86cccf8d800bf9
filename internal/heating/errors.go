package heating

import "codeberg.org/mutker/vehiclectl/internal/errors"

const (
	ErrInvalidSettings = errors.ErrorCode("heating_invalid_settings")
	ErrInvalidMode     = errors.ErrorCode("heating_invalid_mode")
	ErrInvalidLevel    = errors.ErrorCode("heating_invalid_level")
	ErrInvalidSource   = errors.ErrorCode("heating_invalid_source")
	ErrInvalidDuration = errors.ErrorCode("heating_invalid_duration")
)
