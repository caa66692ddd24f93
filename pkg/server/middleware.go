package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/StricklySoft/agentgate/pkg/auth"
	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/gateway"
)

const (
	// HeaderRequestID carries the request id in and out.
	HeaderRequestID = "X-Request-ID"

	requestIDKey = "request_id"
	principalKey = "principal"
)

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func isProbePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// accessLog logs every request except probes and scrapes, at a level that
// follows the status.
func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isProbePath(path) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "server: request completed",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		)
	}
}

// recovery turns a handler panic into the gateway's 500 InternalError body.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "server: panic recovered",
					"panic", fmt.Sprint(r),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDKey),
					"stack", string(debug.Stack()),
				)
				writeResponse(c, gateway.ErrorResponse(
					sserr.Internal(gateway.MessageInternal), gateway.MessageInternal, time.Now()))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// authenticate requires a valid bearer token and stores the principal in
// both the gin context and the request context.
func authenticate(validator gateway.Validator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(auth.HeaderAuthorization)
		if header == "" {
			abortWith(c, sserr.Unauthenticated(gateway.MessageMissingAuthorization), gateway.MessageMissingAuthorization)
			return
		}
		principal, err := validator.Validate(c.Request.Context(), header)
		if err != nil {
			kind, _ := auth.KindOf(err)
			logger.WarnContext(c.Request.Context(), "server: token rejected",
				"path", c.Request.URL.Path,
				"failure_kind", kind.String(),
			)
			abortWith(c, sserr.Wrap(err, kind.Code(), gateway.MessageInvalidToken), gateway.MessageInvalidToken)
			return
		}
		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(auth.ContextWithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

func principalFrom(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

func abortWith(c *gin.Context, err *sserr.Error, message string) {
	writeResponse(c, gateway.ErrorResponse(err, message, time.Now()))
	c.Abort()
}

// writeResponse copies a gateway response onto the gin writer.
func writeResponse(c *gin.Context, resp *gateway.Response) {
	h := c.Writer.Header()
	for k, v := range resp.Headers {
		h[k] = append([]string(nil), v...)
	}
	c.Status(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
}
