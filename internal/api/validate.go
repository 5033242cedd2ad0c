package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/resume-matcher/internal/errs"
)

const (
	tagNotBlank   = "notblank"
	tagBasicEmail = "basicemail"

	MinPasswordLength = 8
)

// basicEmail is the same loose local@domain.tld check the web client performs.
var basicEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// messages keyed by "Struct.Field" override the generic text for a failed tag.
var messages = map[string]string{
	"Credentials.Email":    "Please enter a valid email address",
	"Credentials.Password": fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(tagNotBlank, func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.String {
			return false
		}
		return strings.TrimSpace(f.String()) != ""
	})

	_ = v.RegisterValidation(tagBasicEmail, func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.String {
			return false
		}
		return basicEmail.MatchString(strings.TrimSpace(f.String()))
	})

	return v
}

// Validate checks s against its validate tags and reports failures as an
// *errs.Error of kind validation, keyed by JSON field name.
func (c *Client) Validate(s interface{}) error {
	return validateStruct(c.validate, s)
}

func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return errs.Wrap(errs.KindValidation, "invalid request", err)
	}

	fields := make(map[string]string, len(fieldErrors))
	first := ""
	for _, fe := range fieldErrors {
		msg := fieldMessage(fe)
		if first == "" {
			first = msg
		}
		fields[fieldPath(fe)] = msg
	}

	if len(fields) == 1 {
		return errs.Validation(first, fields)
	}

	return errs.Validation("", fields)
}

// fieldPath returns the JSON path of the failing field without the struct name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := messages[fe.StructNamespace()]; ok {
		return msg
	}

	name := fieldPath(fe)
	switch fe.Tag() {
	case tagNotBlank, "required":
		return fmt.Sprintf("%s is required", name)
	case tagBasicEmail, "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must have at least %s entries", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte", "gt":
		return fmt.Sprintf("%s must be greater than or equal to %s", name, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must have the same length as %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}
