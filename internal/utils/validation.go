package contextutils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// localeCodePattern is anchored at the start only: "en", "pt-br" and "en-us" pass,
// "1en" and "e" do not.
var localeCodePattern = regexp.MustCompile(`^([a-z]-?[a-z])+`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("localecode", func(fl validator.FieldLevel) bool {
		return IsValidLocaleCode(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// IsValidLocaleCode reports whether code looks like a language or country locale, case-insensitively.
func IsValidLocaleCode(code string) bool {
	return localeCodePattern.MatchString(strings.ToLower(code))
}

// ValidateStruct runs the struct's validate tags and converts the first failure
// into a VALIDATION_FAILED AppError naming the field by its json name.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return WrapError(err, "failed to validate")
	}

	fe := validationErrs[0]
	return &AppError{
		Code:     ErrorCodeValidationFailed,
		Severity: SeverityWarn,
		Message:  describeFieldError(fe),
		Details:  fmt.Sprintf("value '%v' failed the '%s' rule", fe.Value(), fe.Tag()),
		Field:    fe.Field(),
	}
}

// ValidateVar checks a single value against a validator tag expression.
func ValidateVar(field string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			fe := validationErrs[0]
			return NewValidationError(field, "%s %s", field, describeRule(fe.Tag(), fe.Param()))
		}
		return WrapError(err, "failed to validate "+field)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	return fmt.Sprintf("%s %s", fe.Field(), describeRule(fe.Tag(), fe.Param()))
}

func describeRule(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " long"
	case "min":
		return "must be at least " + param
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "localecode":
		return "is not a valid locale code"
	case "oneof":
		return "must be one of [" + param + "]"
	default:
		return "failed the " + tag + " rule"
	}
}
