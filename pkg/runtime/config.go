package runtime

import (
	"net/url"
	"strings"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// Default request settings. The runtime is invoked once per request; there
// is no retry, so the timeouts bound the whole call.
const (
	// DefaultQualifier selects the runtime endpoint version.
	DefaultQualifier = "DEFAULT"

	// DefaultRequestTimeout bounds one invocation end to end.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultConnectTimeout bounds establishing the TCP connection.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultMaxResponseBytes caps the reply body read from the runtime.
	DefaultMaxResponseBytes = 4 << 20
)

// Config holds the agent runtime connection settings.
//
// # Example
//
//	cfg := runtime.Config{
//	    Endpoint:   "https://bedrock-agentcore.eu-west-1.amazonaws.com",
//	    RuntimeARN: "arn:aws:bedrock-agentcore:eu-west-1:123456789012:runtime/agent-abc",
//	}
//	client, err := runtime.NewClient(cfg, logger)
type Config struct {
	// Endpoint is the runtime service base URL, without a trailing path.
	// Environment variable: ENDPOINT
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT" required:"true"`

	// RuntimeARN identifies the agent runtime to invoke.
	// Environment variable: ARN
	RuntimeARN string `json:"runtime_arn" yaml:"runtime_arn" env:"ARN" required:"true"`

	// Qualifier selects the runtime endpoint version.
	// Default: "DEFAULT"
	Qualifier string `json:"qualifier" yaml:"qualifier" env:"QUALIFIER" envDefault:"DEFAULT"`

	// RequestTimeout bounds one invocation, including reading the reply.
	// Default: 60s
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// ConnectTimeout bounds dialing the runtime.
	// Default: 30s
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" env:"CONNECT_TIMEOUT" envDefault:"30s"`

	// MaxResponseBytes caps the reply body. Longer replies are truncated.
	// Default: 4 MiB
	MaxResponseBytes int64 `json:"max_response_bytes" yaml:"max_response_bytes" env:"MAX_RESPONSE_BYTES"`
}

// Validate checks the configuration and applies defaults for zero-valued
// fields.
//
// Validation rules:
//   - Endpoint must be an absolute http(s) URL
//   - RuntimeARN must not be empty
//   - timeouts and MaxResponseBytes must not be negative
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return sserr.New(sserr.CodeValidationRequired, "runtime: config endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return sserr.Newf(sserr.CodeValidationFormat, "runtime: config endpoint %q is not an absolute http(s) URL", c.Endpoint)
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.RuntimeARN == "" {
		return sserr.New(sserr.CodeValidationRequired, "runtime: config runtime_arn is required")
	}
	if c.Qualifier == "" {
		c.Qualifier = DefaultQualifier
	}
	if c.RequestTimeout < 0 || c.ConnectTimeout < 0 || c.MaxResponseBytes < 0 {
		return sserr.New(sserr.CodeValidationRange, "runtime: config timeouts and max_response_bytes must not be negative")
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return nil
}

// InvocationURL returns the URL a prompt is POSTed to. The runtime ARN is
// query-escaped into a single path segment.
func (c *Config) InvocationURL() string {
	qualifier := c.Qualifier
	if qualifier == "" {
		qualifier = DefaultQualifier
	}
	return c.Endpoint + "/runtimes/" + url.QueryEscape(c.RuntimeARN) +
		"/invocations?qualifier=" + url.QueryEscape(qualifier)
}
