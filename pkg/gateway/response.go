package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/models"
)

// CORS and content headers set on every response.
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderAllowMethods = "Access-Control-Allow-Methods"

	allowOrigin  = "*"
	allowHeaders = "Content-Type,Authorization"
	allowMethods = "POST,OPTIONS"
	contentType  = "application/json"
)

// Request is an inbound invocation, independent of the HTTP framework.
type Request struct {
	Headers http.Header
	Body    []byte

	// BodyErr records a failure reading Body. It is reported as a bad
	// request only once the caller has authenticated.
	BodyErr error
}

// Response is the gateway's answer. Body is always JSON, except for a
// preflight response, which has none.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// ResponseHeaders returns the headers every gateway response carries.
func ResponseHeaders() http.Header {
	h := make(http.Header, 4)
	h.Set("Content-Type", contentType)
	h.Set(HeaderAllowOrigin, allowOrigin)
	h.Set(HeaderAllowHeaders, allowHeaders)
	h.Set(HeaderAllowMethods, allowMethods)
	return h
}

// Preflight answers a CORS preflight request.
func Preflight() *Response {
	return &Response{Status: http.StatusNoContent, Headers: ResponseHeaders()}
}

// jsonResponse encodes v. Encoding the gateway's own types cannot fail
// short of a programming error, which surfaces as a 500 with a fixed body.
func jsonResponse(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"message":"Internal server error","error":"InternalError","status":500}`)
	}
	return &Response{Status: status, Headers: ResponseHeaders(), Body: body}
}

// ErrorResponse renders err as the caller-visible error body. The status
// and label come from the error's code; message is what the caller sees.
func ErrorResponse(err *sserr.Error, message string, now time.Time) *Response {
	status := err.HTTPStatus()
	return jsonResponse(status, models.NewErrorResponse(status, err.Label(), message, now))
}
