// Package validation evaluates the declarative rules attached to intake
// DTOs as struct tags and reports failures keyed by camelCase field path.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Errors maps a JSON field path ("primaryAddress.zipCode",
// "phones[0].number") to a message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors exposes the map to the HTTP error handler.
func (e Errors) FieldErrors() map[string]string { return e }

// Validator wraps go-playground/validator with the intake rule set. It also
// satisfies echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	for tag, fn := range customTags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
	return &Validator{v: v}
}

// RegisterStructValidation adds a struct-level rule for the given types.
func (val *Validator) RegisterStructValidation(fn validator.StructLevelFunc, types ...any) {
	val.v.RegisterStructValidation(fn, types...)
}

// Struct validates s. It returns nil or an Errors value.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validate: %w", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		if _, seen := out[path]; !seen {
			out[path] = message(fe)
		}
	}
	return out
}

// Validate implements echo.Validator.
func (val *Validator) Validate(i any) error {
	return val.Struct(i)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "notfuture":
		return "cannot be in the future"
	case "dateafter":
		return "cannot be before " + lowerFirst(fe.Param())
	case "phone":
		return "must be a valid phone number"
	case "zip":
		return "must be a 5-digit ZIP code"
	case "usstate":
		return "must be a two-letter state code"
	case "tristate":
		return "must be Yes, No or Unknown"
	case "json":
		return "must be valid JSON"
	case "uuid", "uuid4":
		return "must be a valid identifier"
	case "single_primary":
		return "only one entry can be primary"
	default:
		return "is invalid"
	}
}
