package apperrors

import (
	"fmt"
	"net/http"
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("Chaining", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrAnotherErrMsg := ErrAnotherErr.Msg("another error msg")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErrMsg)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErrMsg)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		goErr := fmt.Errorf("go error")
		assert.ErrorIs(t, ErrFirstLevel.Err(goErr), goErr)
		assert.NotErrorIs(t, ErrFirstLevel, ErrAnotherErr)
	})

	t.Run("StatusAndErrno", func(t *testing.T) {
		ErrDevice := New("device error").SetStatusCode(http.StatusInternalServerError)
		ErrInval := ErrDevice.New("invalid argument").SetStatusCode(http.StatusBadRequest).SetErrno(syscall.EINVAL)

		assert.Equal(t, http.StatusInternalServerError, ErrDevice.StatusCode())
		assert.Equal(t, syscall.Errno(0), ErrDevice.Errno())
		assert.Equal(t, http.StatusBadRequest, ErrInval.StatusCode())
		assert.Equal(t, syscall.EINVAL, ErrInval.Errno())

		derived := ErrInval.Msg("seek beyond end")
		assert.Equal(t, http.StatusBadRequest, derived.StatusCode())
		assert.Equal(t, syscall.EINVAL, derived.Errno())
		assert.ErrorIs(t, derived, ErrInval)
		assert.ErrorIs(t, derived, ErrDevice)

		assert.Equal(t, syscall.EINVAL, ErrnoOf(fmt.Errorf("wrapped: %w", derived)))
		assert.Equal(t, syscall.Errno(0), ErrnoOf(errors.New("plain")))
		assert.Equal(t, syscall.ENOENT, ErrnoOf(&os.PathError{Op: "open", Path: "/dev/x", Err: syscall.ENOENT}))
	})

	t.Run("ErrorAll", func(t *testing.T) {
		ErrParse := New("unable to parse").SetExpandError(true)
		cause := errors.New("unexpected EOF")
		assert.Equal(t, "unable to parse; unexpected EOF", ErrParse.Err(cause).ErrorAll())
		assert.Equal(t, "unable to parse", New("unable to parse").Err(cause).ErrorAll())
	})
}
