package property

import (
	stderrors "errors"

	"codeberg.org/mutker/vehiclectl/internal/errors"
)

// ErrServiceUnavailable is returned by adapters when the property service
// or one of its entry points does not exist on this head unit. The bridge
// treats it as permanent.
var ErrServiceUnavailable = stderrors.New("property service unavailable")

// ErrNotConnected is returned by adapters called before Connect.
var ErrNotConnected = stderrors.New("property service not connected")

const (
	ErrConnectFailed    = errors.ErrorCode("property_connect_failed")
	ErrResolveFailed    = errors.ErrorCode("property_resolve_failed")
	ErrDisconnectFailed = errors.ErrorCode("property_disconnect_failed")
	ErrCallPanicked     = errors.ErrorCode("property_call_panicked")
)
