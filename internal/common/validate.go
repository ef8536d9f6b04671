package common

import (
	"strings"

	validator "github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs struct tag validation and converts failures into the
// canonical VALIDATION_ERROR shape.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		first := errs[0]
		return BadRequest(
			strings.ToLower(first.Field())+" failed on '"+first.Tag()+"'",
			strings.ToLower(first.Field()),
		)
	}
	return BadRequest("invalid payload", "")
}
