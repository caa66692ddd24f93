package config

import (
	"reflect"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// Validator is implemented by configuration structs that check their own
// values and fill in defaults. Load calls Validate on every nested struct
// that implements it (through a pointer receiver), innermost first, and
// then on the root.
//
// Errors that are already [*sserr.Error] are returned as-is; others are
// wrapped with [sserr.CodeValidation].
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}
	if err := validateNested(rv, ""); err != nil {
		return err
	}
	if v, ok := cfg.(Validator); ok {
		return wrapValidation(v.Validate(), "")
	}
	return nil
}

// validateNested calls Validate on nested struct fields, depth-first.
func validateNested(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() || field.Kind() != reflect.Struct || sf.Type == durationType {
			continue
		}
		fieldPath := joinPath(path, sf.Name)
		if err := validateNested(field, fieldPath); err != nil {
			return err
		}
		if v, ok := field.Addr().Interface().(Validator); ok {
			if err := wrapValidation(v.Validate(), fieldPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func wrapValidation(err error, path string) error {
	if err == nil {
		return nil
	}
	if _, ok := sserr.AsError(err); ok {
		return err
	}
	msg := "config: custom validation failed"
	if path != "" {
		msg = "config: validation of " + path + " failed"
	}
	return sserr.Wrap(err, sserr.CodeValidation, msg)
}

// validateRequired checks that every field tagged `required:"true"` holds
// a non-zero value. path is the dotted field path used in messages.
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		fieldPath := joinPath(path, sf.Name)

		if field.Kind() == reflect.Struct {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}
		if sf.Tag.Get("required") != "true" {
			continue
		}
		if field.IsZero() {
			return sserr.Newf(sserr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
