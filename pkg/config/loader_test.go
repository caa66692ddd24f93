package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// ===========================================================================
// Test Types
// ===========================================================================

// testSecret is a named string type with a redacted String method.
type testSecret string

func (s testSecret) String() string { return "[REDACTED]" }

type serverSection struct {
	Addr            string        `env:"ADDR" envDefault:":8080" yaml:"addr" json:"addr"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type authSection struct {
	Region   string   `env:"REGION" yaml:"region" json:"region"`
	Pool     string   `env:"USER_POOL_ID" yaml:"user_pool_id" json:"user_pool_id" required:"true"`
	TokenUse string   `env:"TOKEN_USE" yaml:"token_use" json:"token_use"`
	Scopes   []string `env:"SCOPES" yaml:"scopes" json:"scopes"`

	validated int
}

func (a *authSection) Validate() error {
	a.validated++
	if a.TokenUse == "" {
		a.TokenUse = "access"
	}
	if a.TokenUse != "access" && a.TokenUse != "id" {
		return errors.New("token use must be access or id")
	}
	return nil
}

type gatewayConfig struct {
	LogLevel   string        `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level" json:"log_level"`
	Server     serverSection `env:"SERVER" yaml:"server" json:"server"`
	Auth       authSection   `env:"AUTH" yaml:"auth" json:"auth"`
	Password   testSecret    `env:"PASSWORD" yaml:"-" json:"-"`
	MaxBytes   int64         `env:"MAX_BYTES" yaml:"max_bytes" json:"max_bytes"`
	Limit      uint32        `env:"LIMIT" envDefault:"10" yaml:"limit" json:"limit"`
	Ratio      float64       `env:"RATIO" yaml:"ratio" json:"ratio"`
	Debug      bool          `env:"DEBUG" yaml:"debug" json:"debug"`
	rootChecks int
}

func (c *gatewayConfig) Validate() error {
	c.rootChecks++
	if c.LogLevel == "trace" {
		return sserr.New(sserr.CodeValidationFormat, "config: unsupported log level")
	}
	return nil
}

// mapLookup returns a LookupFunc backed by m.
func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// writeTestFile creates a file in the test's temp directory and returns
// its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTestFile() error: %v", err)
	}
	return path
}

func baseEnv() map[string]string {
	return map[string]string{"GW_AUTH_USER_POOL_ID": "eu-west-1_Pool"}
}

// ===========================================================================
// Load
// ===========================================================================

func TestLoader_Load_RejectsNonStruct(t *testing.T) {
	t.Parallel()
	var n int
	tests := []struct {
		name string
		cfg  any
	}{
		{name: "nil", cfg: nil},
		{name: "non-pointer", cfg: gatewayConfig{}},
		{name: "pointer to int", cfg: &n},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := New().Load(tt.cfg)
			if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
				t.Errorf("Load() error = %v, want %s", err, sserr.CodeInternalConfiguration)
			}
		})
	}
}

func TestLoader_Load_Defaults(t *testing.T) {
	t.Parallel()
	var cfg gatewayConfig
	if err := New().WithEnvPrefix("gw").WithLookup(mapLookup(baseEnv())).Load(&cfg); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.Server.Addr != ":8080" || cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Limit != 10 {
		t.Errorf("Limit = %d, want 10", cfg.Limit)
	}
	if cfg.Auth.TokenUse != "access" {
		t.Errorf("nested Validate did not apply its default, TokenUse = %q", cfg.Auth.TokenUse)
	}
	if cfg.Auth.validated != 1 || cfg.rootChecks != 1 {
		t.Errorf("validators called %d/%d times, want 1/1", cfg.Auth.validated, cfg.rootChecks)
	}
}

func TestLoader_Load_Env(t *testing.T) {
	t.Parallel()
	env := baseEnv()
	env["GW_SERVER_ADDR"] = ":9090"
	env["GW_AUTH_REGION"] = "eu-west-1"
	env["GW_AUTH_SCOPES"] = "agent/invoke, openid,,"
	env["GW_PASSWORD"] = "s3cret"
	env["GW_MAX_BYTES"] = "4194304"
	env["GW_LIMIT"] = "25"
	env["GW_RATIO"] = "0.5"
	env["GW_DEBUG"] = "true"

	var cfg gatewayConfig
	if err := New().WithEnvPrefix("GW").WithLookup(mapLookup(env)).Load(&cfg); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Auth.Region != "eu-west-1" {
		t.Errorf("nested env not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Auth.Scopes, []string{"agent/invoke", "openid"}) {
		t.Errorf("Scopes = %v", cfg.Auth.Scopes)
	}
	if string(cfg.Password) != "s3cret" {
		t.Error("named string type not set from env")
	}
	if cfg.MaxBytes != 4<<20 || cfg.Limit != 25 || cfg.Ratio != 0.5 || !cfg.Debug {
		t.Errorf("scalar env not applied: %+v", cfg)
	}
}

func TestLoader_Load_ProcessEnv(t *testing.T) {
	t.Setenv("PENV_AUTH_USER_POOL_ID", "pool-from-env")
	t.Setenv("PENV_LOG_LEVEL", "debug")

	var cfg gatewayConfig
	if err := New().WithEnvPrefix("PENV").WithLookup(nil).Load(&cfg); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Auth.Pool != "pool-from-env" || cfg.LogLevel != "debug" {
		t.Errorf("process env not read: %+v", cfg)
	}
}

func TestLoader_Load_PriorityOrder(t *testing.T) {
	t.Parallel()
	path := writeTestFile(t, "gw.yaml", `
log_level: warn
server:
  addr: ":7000"
auth:
  user_pool_id: from-file
  region: eu-central-1
`)
	env := map[string]string{"GW_SERVER_ADDR": ":9000"}

	var cfg gatewayConfig
	if err := New().WithEnvPrefix("GW").WithFile(path).WithLookup(mapLookup(env)).Load(&cfg); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want file value over default", cfg.LogLevel)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Addr = %q, want env value over file", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default kept", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.Pool != "from-file" || cfg.Auth.Region != "eu-central-1" {
		t.Errorf("auth from file not applied: %+v", cfg.Auth)
	}
}

func TestLoader_Load_JSONFile(t *testing.T) {
	t.Parallel()
	path := writeTestFile(t, "gw.json", `{"auth":{"user_pool_id":"json-pool"},"limit":3}`)

	var cfg gatewayConfig
	if err := New().WithFile(path).WithLookup(mapLookup(nil)).Load(&cfg); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Auth.Pool != "json-pool" || cfg.Limit != 3 {
		t.Errorf("JSON file not applied: %+v", cfg)
	}
}

func TestLoader_Load_FileErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path func(t *testing.T) string
		ok   bool
	}{
		{name: "missing file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }, ok: true},
		{name: "traversal", path: func(*testing.T) string { return "../etc/gw.yaml" }},
		{name: "bad extension", path: func(t *testing.T) string { return writeTestFile(t, "gw.toml", "a=1") }},
		{name: "bad yaml", path: func(t *testing.T) string { return writeTestFile(t, "gw.yaml", "server: [") }},
		{name: "bad json", path: func(t *testing.T) string { return writeTestFile(t, "gw.json", "{") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cfg gatewayConfig
			err := New().WithEnvPrefix("GW").WithFile(tt.path(t)).WithLookup(mapLookup(baseEnv())).Load(&cfg)
			if tt.ok {
				if err != nil {
					t.Fatalf("Load() unexpected error: %v", err)
				}
				return
			}
			if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
				t.Errorf("Load() error = %v, want %s", err, sserr.CodeInternalConfiguration)
			}
		})
	}
}

func TestLoader_Load_InvalidEnvValues(t *testing.T) {
	t.Parallel()
	for key, val := range map[string]string{
		"GW_LIMIT":                   "-1",
		"GW_RATIO":                   "half",
		"GW_DEBUG":                   "maybe",
		"GW_MAX_BYTES":               "lots",
		"GW_SERVER_SHUTDOWN_TIMEOUT": "soon",
	} {
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			env := baseEnv()
			env[key] = val
			var cfg gatewayConfig
			err := New().WithEnvPrefix("GW").WithLookup(mapLookup(env)).Load(&cfg)
			if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
				t.Errorf("Load() error = %v, want %s", err, sserr.CodeInternalConfiguration)
			}
		})
	}
}

func TestLoader_Load_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		env  map[string]string
		code sserr.Code
		path string
	}{
		{name: "required missing", env: map[string]string{}, code: sserr.CodeValidationRequired, path: "Auth.Pool"},
		{name: "nested stdlib error", env: map[string]string{"GW_AUTH_USER_POOL_ID": "p", "GW_AUTH_TOKEN_USE": "refresh"}, code: sserr.CodeValidation, path: "Auth"},
		{name: "root sserr error", env: map[string]string{"GW_AUTH_USER_POOL_ID": "p", "GW_LOG_LEVEL": "trace"}, code: sserr.CodeValidationFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cfg gatewayConfig
			err := New().WithEnvPrefix("GW").WithLookup(mapLookup(tt.env)).Load(&cfg)
			if !sserr.HasCode(err, tt.code) {
				t.Fatalf("Load() error = %v, want %s", err, tt.code)
			}
			if tt.path != "" && !strings.Contains(err.Error(), tt.path) {
				t.Errorf("error %q does not name field %q", err, tt.path)
			}
		})
	}
}

// ===========================================================================
// EnvKeys
// ===========================================================================

func TestLoader_EnvKeys(t *testing.T) {
	t.Parallel()
	got := New().WithEnvPrefix("gw").EnvKeys(&gatewayConfig{})
	want := []string{
		"GW_LOG_LEVEL",
		"GW_SERVER_ADDR",
		"GW_SERVER_SHUTDOWN_TIMEOUT",
		"GW_AUTH_REGION",
		"GW_AUTH_USER_POOL_ID",
		"GW_AUTH_TOKEN_USE",
		"GW_AUTH_SCOPES",
		"GW_PASSWORD",
		"GW_MAX_BYTES",
		"GW_LIMIT",
		"GW_RATIO",
		"GW_DEBUG",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EnvKeys() = %v, want %v", got, want)
	}
	if keys := New().EnvKeys(42); keys != nil {
		t.Errorf("EnvKeys(non-struct) = %v, want nil", keys)
	}
}
