package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/StricklySoft/agentgate/pkg/auth"
	"github.com/StricklySoft/agentgate/pkg/clients/postgres"
	"github.com/StricklySoft/agentgate/pkg/clients/qdrant"
	"github.com/StricklySoft/agentgate/pkg/clients/redis"
	"github.com/StricklySoft/agentgate/pkg/config"
	sserr "github.com/StricklySoft/agentgate/pkg/errors"
	"github.com/StricklySoft/agentgate/pkg/memory"
	"github.com/StricklySoft/agentgate/pkg/runtime"
	"github.com/StricklySoft/agentgate/pkg/server"
)

// envPrefix prefixes every environment variable, e.g. AGENTGATE_AUTH_REGION.
const envPrefix = "AGENTGATE"

// Catalog sources for memory strategies.
const (
	CatalogStatic   = "static"
	CatalogPostgres = "postgres"
)

// Config is the complete agentgate configuration.
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `json:"log_format" yaml:"log_format" env:"LOG_FORMAT" envDefault:"json"`

	Server   server.Config        `json:"server" yaml:"server" env:"SERVER"`
	Auth     auth.ValidatorConfig `json:"auth" yaml:"auth" env:"AUTH"`
	Runtime  runtime.Config       `json:"runtime" yaml:"runtime" env:"RUNTIME"`
	Memory   MemoryConfig         `json:"memory" yaml:"memory" env:"MEMORY"`
	Redis    redis.Config         `json:"redis" yaml:"redis" env:"REDIS"`
	Postgres postgres.Config      `json:"postgres" yaml:"postgres" env:"POSTGRES"`
	Qdrant   qdrant.Config        `json:"qdrant" yaml:"qdrant" env:"QDRANT"`
}

// MemoryConfig selects the long-term memory backends. Memory is off
// unless Enabled is set; the client sections are only dialed when used.
type MemoryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"ENABLED"`

	// ID is the memory resource whose strategies are loaded.
	ID string `json:"id" yaml:"id" env:"ID"`

	// Catalog is where strategies come from: "static" or "postgres".
	Catalog string `json:"catalog" yaml:"catalog" env:"CATALOG" envDefault:"static"`

	// Strategies lists "kind:id" entries for the static catalog.
	Strategies []string `json:"strategies" yaml:"strategies" env:"STRATEGIES"`

	Collection string `json:"collection" yaml:"collection" env:"COLLECTION" envDefault:"agent_memory"`
	VectorSize uint64 `json:"vector_size" yaml:"vector_size" env:"VECTOR_SIZE"`

	// SkipCollectionSetup leaves the Qdrant collection alone at startup.
	SkipCollectionSetup bool `json:"skip_collection_setup" yaml:"skip_collection_setup" env:"SKIP_COLLECTION_SETUP"`

	// CacheEnabled puts a Redis cache in front of Qdrant.
	CacheEnabled bool          `json:"cache_enabled" yaml:"cache_enabled" env:"CACHE_ENABLED"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"CACHE_TTL" envDefault:"5m"`
}

// Validate checks the memory settings. A disabled memory is always valid.
func (c *MemoryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ID == "" {
		return sserr.New(sserr.CodeValidationRequired, "memory: config id is required when memory is enabled")
	}
	c.Catalog = strings.ToLower(strings.TrimSpace(c.Catalog))
	switch c.Catalog {
	case "":
		c.Catalog = CatalogStatic
	case CatalogStatic, CatalogPostgres:
	default:
		return sserr.Newf(sserr.CodeValidationFormat,
			"memory: config catalog %q must be %q or %q", c.Catalog, CatalogStatic, CatalogPostgres)
	}
	if c.Catalog == CatalogStatic {
		if _, err := memory.ParseStaticCatalog(c.Strategies); err != nil {
			return err
		}
	}
	if c.Collection == "" {
		c.Collection = memory.DefaultCollection
	}
	if c.CacheTTL < 0 {
		return sserr.New(sserr.CodeValidationRange, "memory: config cache_ttl must not be negative")
	}
	return nil
}

// Validate checks the root-level settings.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return sserr.Newf(sserr.CodeValidationFormat, "config: log_format %q must be json or text", c.LogFormat)
	}
	return nil
}

func newLoader(path string, lookup config.LookupFunc) *config.Loader {
	return config.New().WithEnvPrefix(envPrefix).WithFile(path).WithLookup(lookup)
}

// loadConfig resolves defaults, the optional file at path, and the
// environment. lookup nil reads the process environment.
func loadConfig(path string, lookup config.LookupFunc) (*Config, error) {
	var cfg Config
	if err := newLoader(path, lookup).Load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, sserr.Wrapf(err, sserr.CodeValidationFormat, "config: log_level %q is not valid", s)
	}
	return level, nil
}
