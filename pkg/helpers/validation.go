package helpers

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps go-playground validator and reports fields by their json names
type CustomValidator struct {
	validate *validator.Validate
}

// NewCustomValidator creates a new validator with json field naming
func NewCustomValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &CustomValidator{validate: v}
}

// Validate validates a struct
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

// RegisterValidation adds a field level rule under tag
func (cv *CustomValidator) RegisterValidation(tag string, fn validator.Func) error {
	return cv.validate.RegisterValidation(tag, fn)
}

// RegisterStructValidation adds a struct level rule for the given types
func (cv *CustomValidator) RegisterStructValidation(fn validator.StructLevelFunc, types ...interface{}) {
	cv.validate.RegisterStructValidation(fn, types...)
}
