// Package validator decodes JSON request bodies and checks them against
// go-playground/validator struct tags, reporting failures by JSON field name.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	// notblank rejects strings made only of whitespace.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimFunc(fl.Field().String(), unicode.IsSpace) != ""
	})
	return v
}

// jsonName keys field errors by the name clients send. Fields without a
// json name fall back to the Go field name.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ValidationError lists every failed constraint of one value.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	for i, fe := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "field '%s' %s", fe.Field(), describe(fe))
	}
	return b.String()
}

// Fields maps JSON field paths, e.g. "category[0]", to readable messages.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field()] = describe(fe)
	}
	return out
}

// Validate checks s against its validate tags.
func Validate(s any) error {
	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

var messages = map[string]func(p string, counted bool) string{
	"required": func(string, bool) string { return "is required" },
	"notblank": func(string, bool) string { return "must not be blank" },
	"uuid":     func(string, bool) string { return "must be a valid UUID" },
	"oneof":    func(p string, _ bool) string { return "must be one of: " + p },
	"gte":      func(p string, _ bool) string { return "must be greater than or equal to " + p },
	"lte":      func(p string, _ bool) string { return "must be less than or equal to " + p },
	"max": func(p string, counted bool) string {
		if counted {
			return "must have at most " + p + " items"
		}
		return "must be at most " + p + " characters"
	},
	"min": func(p string, counted bool) string {
		if counted {
			return "must have at least " + p + " items"
		}
		return "must be at least " + p + " characters"
	},
}

func describe(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
	counted := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map
	return msg(fe.Param(), counted)
}

// DecodeAndValidate reads exactly one JSON value from the body into dst and
// validates it. Malformed bodies yield plain errors and failed constraints
// yield *ValidationError.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return errors.New("decode request body: body is empty")
	case errors.As(err, &tooLarge):
		return fmt.Errorf("decode request body: body exceeds %d bytes", tooLarge.Limit)
	case err != nil:
		return fmt.Errorf("decode request body: %w", err)
	case dec.More():
		return errors.New("decode request body: body must contain a single JSON object")
	}
	return Validate(dst)
}
