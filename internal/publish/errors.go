package publish

import "codeberg.org/mutker/vehiclectl/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("publish_invalid_config")
	ErrConnect       = errors.ErrorCode("mqtt_connect_failed")
	ErrPublish       = errors.ErrorCode("mqtt_publish_failed")
	ErrEncode        = errors.ErrorCode("publish_encode_failed")
)
