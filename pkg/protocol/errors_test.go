package protocol

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_StatusCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		code int
	}{
		{NotFound, http.StatusNotFound},
		{Forbidden, http.StatusForbidden},
		{BadRequest, http.StatusBadRequest},
		{Conflict, http.StatusConflict},
		{Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.kind.StatusCode())
	}
}

func TestError_UnwrapAndAs(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(NotFound, "blob missing", cause)

	assert.ErrorIs(t, err, cause)

	var pe *Error
	require := assert.New(t)
	require.True(errors.As(err, &pe))
	require.Equal(NotFound, pe.Kind)
}

func TestKindOf_UnwrappedErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestKindOf_WrappedErrorKeepsKind(t *testing.T) {
	err := NewError(Forbidden, "nope", nil)
	assert.Equal(t, Forbidden, KindOf(err))
}
