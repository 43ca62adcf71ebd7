package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_WalksChain(t *testing.T) {
	inner := New(CodeInvalidTransition, "match is not pending")
	outer := Wrap(inner, CodeInternal, "confirm failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeInvalidTransition))
	assert.False(t, HasCode(outer, CodeUnauthorized))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := Wrap(cause, CodeConflict, "concurrent writer won")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeConflict, CodeOf(err))
}

func TestCodeOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("wrapped: %w", New(CodeNotFound, "gone"))))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:      http.StatusBadRequest,
		CodeBadRequest:        http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeInvalidTransition: http.StatusConflict,
		CodeAlreadyEscalated:  http.StatusConflict,
		CodeDuplicateMatch:    http.StatusConflict,
		CodeConflict:          http.StatusConflict,
		CodeUnauthorized:      http.StatusForbidden,
		CodeTimeout:           http.StatusGatewayTimeout,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
