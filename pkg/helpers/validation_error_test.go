package helpers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Name   string `json:"name" validate:"required"`
	Points int    `json:"points" validate:"min=1,max=5"`
	Lang   string `json:"language" validate:"oneof=ky ru"`
}

func TestFieldErrors(t *testing.T) {
	v := NewCustomValidator()

	err := v.Validate(sampleInput{Points: 9, Lang: "en"})
	fields := FieldErrors(err)

	assert.Equal(t, map[string]string{
		"sampleInput.name":     "The name field is required",
		"sampleInput.points":   "The points field must not exceed 5",
		"sampleInput.language": "The language field must be one of: ky ru",
	}, fields)

	assert.Nil(t, FieldErrors(nil))
	assert.Equal(t, map[string]string{"_": "boom"}, FieldErrors(errors.New("boom")))
}

func TestMergeValidationErrors(t *testing.T) {
	merged := MergeValidationErrors(
		map[string]string{"a": "first", "b": "second"},
		nil,
		map[string]string{"b": "override"},
	)
	assert.Equal(t, map[string]string{"a": "first", "b": "override"}, merged)
}

func TestWriteValidationErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationErrorResponse(rec, map[string]string{
		"questions[1].question": "The question field is required",
		"name":                  "The name field is required",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "The name field is required", body.Message)
	assert.Len(t, body.Errors, 2)
}
