package errors

// ErrorCode is the stable identifier carried by every domain error. Codes
// show up in log fields and in API error bodies, so they never change once
// shipped.
type ErrorCode string

// Error is a coded error. Packages declare their own codes next to the
// code that raises them and build values through a Factory.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds Error values. Wrap keeps the cause reachable through
// Unwrap, so HasCode and Is still see it.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}

// CodeOf returns the code of the outermost Error in err's chain, or
// ErrInternal for errors that never passed through a Factory.
func CodeOf(err error) ErrorCode {
	var e Error
	if As(err, &e) {
		return e.Code()
	}

	return ErrInternal
}

// HasCode reports whether any error in err's chain carries code. A bus
// failure wrapped by the bridge and again by a controller still matches
// the bus code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(Error); ok && e.Code() == code {
			return true
		}
		err = Unwrap(err)
	}

	return false
}
