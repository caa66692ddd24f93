// Package postgres provides the PostgreSQL client behind the memory
// strategy catalog. It wraps a pgx connection pool
// (github.com/jackc/pgx/v5/pgxpool) with OpenTelemetry spans and maps
// failures onto agentgate error codes.
//
//	client, err := postgres.NewClient(ctx, postgres.Config{
//	    URI: "postgres://agentgate@db:5432/agentgate?sslmode=require",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Unit tests inject pgxmock through [NewFromPool].
package postgres

import (
	"fmt"
	"net/url"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// maxSQLTruncateLen caps db.query.text span attributes.
const maxSQLTruncateLen = 100

const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultDatabase = "agentgate"
	DefaultUser     = "agentgate"

	DefaultMaxConns int32 = 10
	DefaultMinConns int32 = 1

	DefaultMaxConnLifetime   = time.Hour
	DefaultMaxConnIdleTime   = 30 * time.Minute
	DefaultHealthCheckPeriod = time.Minute
	DefaultConnectTimeout    = 10 * time.Second

	// DefaultHealthTimeout bounds a health ping when the caller's context
	// has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// SSLMode is a libpq sslmode value.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeAllow      SSLMode = "allow"
	SSLModePrefer     SSLMode = "prefer"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

// Valid reports whether m is a recognized sslmode.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer,
		SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

// Secret is a string whose String, GoString and MarshalText forms are
// redacted. Use [Secret.Value] for the real value.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string               { return redacted }
func (s Secret) GoString() string             { return redacted }
func (s Secret) Value() string                { return string(s) }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the PostgreSQL connection settings. URI, when set, takes
// precedence over the structured connection fields. Env tags are relative
// to the POSTGRES section of the gateway config.
type Config struct {
	URI string `json:"uri,omitempty" yaml:"uri,omitempty" env:"URI"`

	Host     string `json:"host,omitempty" yaml:"host,omitempty" env:"HOST"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty" env:"PORT"`
	Database string `json:"database,omitempty" yaml:"database,omitempty" env:"DATABASE"`
	User     string `json:"user,omitempty" yaml:"user,omitempty" env:"USER"`
	Password Secret `json:"-" yaml:"password,omitempty" env:"PASSWORD"`

	SSLMode SSLMode `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty" env:"SSLMODE"`

	// SSLRootCert is a CA bundle path passed through as sslrootcert.
	SSLRootCert string `json:"ssl_root_cert,omitempty" yaml:"ssl_root_cert,omitempty" env:"SSL_ROOT_CERT"`

	MaxConns          int32         `json:"max_conns,omitempty" yaml:"max_conns,omitempty" env:"MAX_CONNS"`
	MinConns          int32         `json:"min_conns,omitempty" yaml:"min_conns,omitempty" env:"MIN_CONNS"`
	MaxConnLifetime   time.Duration `json:"max_conn_lifetime,omitempty" yaml:"max_conn_lifetime,omitempty" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `json:"max_conn_idle_time,omitempty" yaml:"max_conn_idle_time,omitempty" env:"MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `json:"health_check_period,omitempty" yaml:"health_check_period,omitempty" env:"HEALTH_CHECK_PERIOD"`
	ConnectTimeout    time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty" env:"CONNECT_TIMEOUT"`
}

// DefaultConfig returns a Config for a local database with sslmode=prefer.
func DefaultConfig() *Config {
	return &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
		User:     DefaultUser,
		SSLMode:  SSLModePrefer,
	}
}

// Validate applies defaults to zero-valued fields and checks the rest.
func (c *Config) Validate() error {
	c.applyPoolDefaults()

	if c.MinConns < 0 || c.MaxConns < c.MinConns {
		return sserr.Newf(sserr.CodeValidationRange,
			"postgres: config max_conns (%d) must be >= min_conns (%d) >= 0", c.MaxConns, c.MinConns)
	}

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeValidationFormat, "postgres: config URI is invalid")
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return sserr.Newf(sserr.CodeValidationFormat,
				"postgres: config URI scheme must be postgres:// or postgresql://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return sserr.Newf(sserr.CodeValidationRange,
			"postgres: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModePrefer
	}
	if !c.SSLMode.Valid() {
		return sserr.Newf(sserr.CodeValidationFormat, "postgres: config ssl_mode %q is not valid", c.SSLMode)
	}
	return nil
}

func (c *Config) applyPoolDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns == 0 && c.MaxConns >= DefaultMinConns {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = DefaultMaxConnLifetime
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = DefaultMaxConnIdleTime
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// ConnectionString returns URI if set, otherwise a postgres:// URL built
// from the structured fields.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.SSLRootCert != "" {
		q.Set("sslrootcert", c.SSLRootCert)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLTruncateLen {
		return sql
	}
	return sql[:maxSQLTruncateLen] + "..."
}
