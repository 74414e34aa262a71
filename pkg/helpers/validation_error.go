package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse represents the validation error response format
type ValidationErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// FieldErrors flattens validator errors into a field -> message map.
// Errors that are not validator errors are returned under "_".
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required", fe.Field())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s field must be one of: %s", fe.Field(), fe.Param())
	case "question_type":
		return fmt.Sprintf("The %s field must be a known question type", fe.Field())
	case "rac_only":
		return fmt.Sprintf("The %s field is only allowed for rac questions", fe.Field())
	default:
		return fmt.Sprintf("The %s field is invalid", fe.Field())
	}
}

// WriteValidationErrorResponse writes a 422 response for field errors
func WriteValidationErrorResponse(w http.ResponseWriter, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(ValidationErrorResponse{
		Message: firstMessage(fields),
		Errors:  fields,
	})
}

// firstMessage picks a deterministic headline message
func firstMessage(fields map[string]string) string {
	if len(fields) == 0 {
		return "The given data was invalid"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fields[keys[0]]
}

// MergeValidationErrors merges multiple validation error maps
func MergeValidationErrors(errs ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		for field, msg := range e {
			result[field] = msg
		}
	}
	return result
}
