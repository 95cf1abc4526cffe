package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeError_IsMatchesByCode(t *testing.T) {
	req := require.New(t)

	err := ErrMalformedMessage.WrapMsg("decode frame", "len", 12)

	req.True(errors.Is(err, ErrMalformedMessage))
	req.False(errors.Is(err, ErrInvalidCredentials))
	req.Equal(MalformedMessage, CodeOf(err))
	req.Contains(err.Error(), "decode frame, len=12")
}

func TestCodeError_WrappedByFmt(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("authenticate: %w", ErrInvalidCredentials.Wrap())

	req.ErrorIs(err, ErrInvalidCredentials)
	req.Equal(InvalidCredentials, CodeOf(err))
}

func TestCodeError_WithDetailDoesNotMutate(t *testing.T) {
	req := require.New(t)

	detailed := ErrUnauthenticated.WithDetail("missing token")

	req.Empty(ErrUnauthenticated.Detail)
	req.Equal("1002 unauthenticated missing token", detailed.Error())
}

func TestCodeOf_PlainError(t *testing.T) {
	require.Zero(t, CodeOf(errors.New("boom")))
	require.Zero(t, CodeOf(nil))
}

func TestErrPanic(t *testing.T) {
	req := require.New(t)

	req.NoError(ErrPanic(nil))

	err := ErrPanic("index out of range")
	req.ErrorIs(err, ErrServerInternal)
	req.Contains(err.Error(), "index out of range")
}
