package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_Category(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code Code
		want string
	}{
		{CodeValidationRequired, "VAL"},
		{CodeTokenExpired, "AUTH"},
		{CodeNotFoundStrategy, "NF"},
		{CodeUpstreamTimeout, "UPSTREAM"},
		{CodeInternalStore, "INT"},
		{Code("NOUNDERSCORE"), "NOUNDERSCORE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.Category())
		})
	}
}

func TestCode_Label(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code Code
		want string
	}{
		{CodeValidationFormat, LabelBadRequest},
		{CodeAuthentication, LabelUnauthenticated},
		{CodeTokenMalformed, LabelUnauthenticated},
		{CodeTokenSignature, LabelUnauthenticated},
		{CodeTokenUnknownKey, LabelUnauthenticated},
		{CodeTokenIssuer, LabelUnauthenticated},
		{CodeTokenExpired, LabelUnauthenticated},
		{CodeTokenUse, LabelUnauthenticated},
		{CodeNotFound, LabelNotFound},
		{CodeUpstreamStatus, LabelUpstreamError},
		{CodeUpstreamTransport, LabelUpstreamError},
		{CodeInternal, LabelInternalError},
		{CodeTimeoutStore, LabelInternalError},
		{CodeUnavailable, LabelInternalError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.Label())
		})
	}
}

func TestError_HTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeTokenUse, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeUpstreamStatus, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
		{CodeUnavailableDependency, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{Code("BOGUS_001"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(tt.code, "x").HTTPStatus())
		})
	}
}

func TestError_Error(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "VAL_002: prompt is required", New(CodeValidationRequired, "prompt is required").Error())

	wrapped := Wrap(errors.New("connection refused"), CodeUpstreamTransport, "runtime: request failed")
	assert.Equal(t, "UPSTREAM_002: runtime: request failed: connection refused", wrapped.Error())
}

func TestError_Format(t *testing.T) {
	t.Parallel()
	err := Wrap(errors.New("boom"), CodeInternal, "failed").WithDetail("kid", "k1")

	assert.Equal(t, "INT_001: failed: boom", fmt.Sprintf("%v", err))
	assert.Equal(t, `"INT_001: failed: boom"`, fmt.Sprintf("%q", err))

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, `Code: "INT_001"`)
	assert.Contains(t, detailed, "kid:k1")
	assert.Contains(t, detailed, "Cause: boom")
}

func TestError_WithDetail_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()
	orig := New(CodeUpstreamStatus, "bad status")
	withStatus := orig.WithDetail("status", 503)

	assert.Nil(t, orig.Details)
	assert.Equal(t, 503, withStatus.Details["status"])
	assert.Equal(t, orig.Code, withStatus.Code)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Wrap(nil, CodeInternal, "x"))
	assert.Nil(t, Wrapf(nil, CodeInternal, "x %d", 1))
}

func TestUpstream_RecordsStatus(t *testing.T) {
	t.Parallel()
	err := Upstream(http.StatusServiceUnavailable)
	assert.Equal(t, CodeUpstreamStatus, err.Code)
	assert.Contains(t, err.Message, "503")
	assert.Equal(t, 503, err.Details["status"])
}

func TestFromError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromError(nil))

	typed := New(CodeTokenExpired, "expired")
	assert.Same(t, typed, FromError(fmt.Errorf("outer: %w", typed)))

	plain := FromError(errors.New("secret internal detail"))
	require.NotNil(t, plain)
	assert.Equal(t, CodeInternal, plain.Code)
	assert.NotContains(t, plain.Message, "secret")
}

func TestChecks(t *testing.T) {
	t.Parallel()

	authErr := fmt.Errorf("ctx: %w", New(CodeTokenUnknownKey, "unknown key"))
	assert.True(t, IsAuthentication(authErr))
	assert.True(t, IsClientError(authErr))
	assert.True(t, HasCode(authErr, CodeTokenUnknownKey))
	assert.False(t, IsUpstream(authErr))

	upErr := New(CodeUpstreamTimeout, "timeout")
	assert.True(t, IsUpstream(upErr))
	assert.True(t, IsTimeout(upErr))
	assert.False(t, IsClientError(upErr))

	assert.True(t, IsValidation(Validation("bad")))
	assert.True(t, IsNotFound(New(CodeNotFoundKey, "no key")))
	assert.True(t, IsInternal(Internal("x")))
	assert.True(t, IsUnavailable(New(CodeUnavailable, "starting")))
	assert.True(t, IsTimeout(New(CodeTimeoutStore, "slow")))

	std := errors.New("plain")
	assert.Equal(t, Code(""), GetCode(std))
	assert.False(t, IsAuthentication(std))
	_, ok := AsError(std)
	assert.False(t, ok)
}
