package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/vehiclectl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid configuration", f.New(errors.ErrInvalidConfig).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInvalidConfig, "custom").Error())
	assert.Equal(t, "Invalid argument provided: bad level", f.WithData(errors.ErrInvalidArgument, "bad level").Error())
	assert.Equal(t, "unknown_code", f.New(errors.ErrorCode("unknown_code")).Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.New().Wrap(errors.ErrInitPrefs, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, errors.ErrInitPrefs, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrTimeout)
	outer := f.Wrap(errors.ErrMainLoop, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.True(t, errors.HasCode(outer, errors.ErrMainLoop))
	assert.False(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}

func TestCodeOfThroughForeignWrap(t *testing.T) {
	inner := errors.New().Wrap(errors.ErrHardwareBackend, stderrors.New("bus gone"))
	wrapped := fmt.Errorf("evaluate: %w", inner)

	assert.Equal(t, errors.ErrHardwareBackend, errors.CodeOf(wrapped))
	assert.False(t, errors.HasCode(wrapped, errors.ErrTimeout))
}
