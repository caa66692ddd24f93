// Package config loads gateway configuration from struct tag defaults, an
// optional YAML or JSON file, and environment variables, in that order of
// increasing priority:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file
//	Environment variables   (highest priority)
//
// # Struct Tags
//
//   - `env:"NAME"` maps a field to an environment variable. On a nested
//     struct field the tag becomes a prefix for the child fields, so
//     Auth.Region tagged `env:"AUTH"` / `env:"REGION"` reads AUTH_REGION.
//   - `envDefault:"value"` sets a default when the field is zero-valued.
//   - `required:"true"` fails loading if the field is still zero.
//
// Fields need `yaml` or `json` tags for file-based loading.
//
// # Validation
//
// After values are resolved, required tags are checked, then every nested
// struct implementing [Validator] is validated depth-first, and finally
// the root struct itself. Component configs apply their own defaults in
// Validate, so a loaded config is ready to hand to constructors.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.New().WithEnvPrefix("AGENTGATE").WithFile("agentgate.yaml").Load(&cfg)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// durationType distinguishes time.Duration from plain int64 fields.
var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment variable. [os.LookupEnv] is the
// default.
type LookupFunc func(key string) (string, bool)

// Loader builds and executes configuration loading. Use [New] and the
// With* methods, then call [Loader.Load].
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New creates a Loader that reads the process environment only.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix sets a prefix prepended, with an underscore, to every
// environment variable name. The prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of a YAML (.yaml, .yml) or JSON (.json) file. A
// missing file is not an error. Paths containing ".." are rejected.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces the environment source. A nil fn restores
// [os.LookupEnv].
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn == nil {
		fn = os.LookupEnv
	}
	l.lookup = fn
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct.
//
// Errors are [*sserr.Error] values: [sserr.CodeInternalConfiguration] for
// loading failures, [sserr.CodeValidationRequired] for missing required
// fields, and the validator's own code (or [sserr.CodeValidation]) for
// Validate failures.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(rv, l.envPrefix, lookup); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// EnvKeys returns the fully prefixed environment variable name of every
// env-tagged leaf field of cfg, in field order. cfg may be a struct or a
// pointer to one.
func (l *Loader) EnvKeys(cfg any) []string {
	rv := reflect.Indirect(reflect.ValueOf(cfg))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	// A zero value from a non-pointer cfg is not addressable, so walk a copy.
	cp := reflect.New(rv.Type()).Elem()
	_ = walk(cp, l.envPrefix, func(_ reflect.Value, _ reflect.StructField, key string) error {
		if key != "" {
			keys = append(keys, key)
		}
		return nil
	})
	return keys
}

// visitFunc is called for each settable leaf field. key is the prefixed
// env name, empty when the field has no env tag.
type visitFunc func(field reflect.Value, sf reflect.StructField, key string) error

// walk visits the leaves of rv depth-first. A nested struct's env tag
// extends the prefix of its children.
func walk(rv reflect.Value, prefix string, visit visitFunc) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		tag := sf.Tag.Get("env")
		if isNested(sf.Type) {
			if err := walk(field, joinKey(prefix, tag), visit); err != nil {
				return err
			}
			continue
		}
		key := ""
		if tag != "" {
			key = joinKey(prefix, tag)
		}
		if err := visit(field, sf, key); err != nil {
			return err
		}
	}
	return nil
}

func isNested(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != durationType
}

func joinKey(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

// decoders maps a lowercased file extension to its unmarshaler.
var decoders = map[string]struct {
	format string
	decode func([]byte, any) error
}{
	".yaml": {"YAML", yaml.Unmarshal},
	".yml":  {"YAML", yaml.Unmarshal},
	".json": {"JSON", json.Unmarshal},
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}
	ext := strings.ToLower(filepath.Ext(l.filePath))
	dec, ok := decoders[ext]
	if !ok {
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	data, err := os.ReadFile(l.filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}
	if err := dec.decode(data, cfg); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse %s file %q", dec.format, l.filePath)
	}
	return nil
}

// applyDefaults sets zero-valued leaves to their envDefault tag value.
func applyDefaults(rv reflect.Value) error {
	return walk(rv, "", func(field reflect.Value, sf reflect.StructField, _ string) error {
		def := sf.Tag.Get("envDefault")
		if def == "" || !field.IsZero() {
			return nil
		}
		if err := setField(field, def); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
		return nil
	})
}

// applyEnv overwrites every env-tagged leaf whose variable is set.
func applyEnv(rv reflect.Value, prefix string, lookup LookupFunc) error {
	return walk(rv, prefix, func(field reflect.Value, sf reflect.StructField, key string) error {
		if key == "" {
			return nil
		}
		val, ok := lookup(key)
		if !ok {
			return nil
		}
		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
		return nil
	})
}

// setField parses value into field. Strings (named string types such as
// Secret included), bools, integers, floats, time.Duration and
// comma-separated []string are supported.
func setField(field reflect.Value, value string) error {
	t := field.Type()
	if t == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	var err error
	switch t.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(value, 10, t.Bits()); err == nil {
			field.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(value, 10, t.Bits()); err == nil {
			field.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(value, t.Bits()); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", t.Elem().Kind())
		}
		field.Set(splitList(value, t))
	default:
		return fmt.Errorf("unsupported field type %s", t.Kind())
	}
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", t.Kind(), value, err)
	}
	return nil
}

// splitList parses a comma-separated list into a slice of type t,
// dropping blank entries.
func splitList(value string, t reflect.Type) reflect.Value {
	out := reflect.MakeSlice(t, 0, strings.Count(value, ",")+1)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = reflect.Append(out, reflect.ValueOf(part).Convert(t.Elem()))
		}
	}
	return out
}
