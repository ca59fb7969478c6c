// internal/validation/validation.go
package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Amounts are validated as numbers, so gte/gt work on decimal fields.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateStruct returns per-field messages keyed by JSON name, or nil.
func ValidateStruct(data interface{}) url.Values {
	err := validate.Struct(data)
	if err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) url.Values {
	errorsMap := url.Values{}
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrs {
			errorsMap.Add(fieldErr.Field(), getErrorMessage(fieldErr))
		}
	} else {
		errorsMap.Add("general", "Validation failed: "+err.Error())
	}
	return errorsMap
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "min":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("Provide at least %s item(s).", err.Param())
		}
		if err.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters long.", err.Param())
		}
		return fmt.Sprintf("Must be at least %s.", err.Param())
	case "max":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters long.", err.Param())
		}
		return fmt.Sprintf("Must be at most %s.", err.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s.", err.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s.", err.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", err.Param())
	case "nefield":
		return fmt.Sprintf("Must differ from %s.", err.Param())
	default:
		return fmt.Sprintf("Invalid value for %s (%s).", err.Field(), err.Tag())
	}
}
