package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/pkg/helpers"
)

const (
	DefaultPoints      = 1
	DefaultTimeLimit   = 60
	DefaultAnswerCount = 4
)

// ErrUnknownType is returned for a type the registry does not know
var ErrUnknownType = errors.New("unknown question type")

// TypeSpec describes one question type
type TypeSpec struct {
	Type          models.QuestionType
	AllowsTextRac bool
}

// Registry holds the question types and their shape rules
type Registry struct {
	specs     map[models.QuestionType]TypeSpec
	order     []models.QuestionType
	validator *helpers.CustomValidator
}

// NewRegistry creates the registry of the six question types
func NewRegistry() *Registry {
	r := &Registry{
		specs:     make(map[models.QuestionType]TypeSpec),
		validator: helpers.NewCustomValidator(),
	}
	for _, spec := range []TypeSpec{
		{Type: models.QuestionMath1},
		{Type: models.QuestionMath2},
		{Type: models.QuestionAnalogy},
		{Type: models.QuestionRac, AllowsTextRac: true},
		{Type: models.QuestionGrammar},
		{Type: models.QuestionStandard},
	} {
		r.specs[spec.Type] = spec
		r.order = append(r.order, spec.Type)
	}

	// Registration only fails on an empty tag or nil func.
	_ = r.validator.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		_, ok := r.specs[models.QuestionType(fl.Field().String())]
		return ok
	})
	r.validator.RegisterStructValidation(r.validateQuestionStruct, models.Question{})

	return r
}

// Types returns the registered types in display order
func (r *Registry) Types() []models.QuestionType {
	return append([]models.QuestionType(nil), r.order...)
}

// Lookup returns the TypeSpec of t
func (r *Registry) Lookup(t models.QuestionType) (TypeSpec, bool) {
	spec, ok := r.specs[t]
	return spec, ok
}

// NewQuestionData returns the default payload of a freshly added question
func (r *Registry) NewQuestionData(t models.QuestionType) (*models.QuestionData, error) {
	if _, ok := r.specs[t]; !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, t)
	}
	return &models.QuestionData{
		Answers:   make([]models.Answer, DefaultAnswerCount),
		Points:    DefaultPoints,
		TimeLimit: DefaultTimeLimit,
	}, nil
}

// ValidateShape checks type, points, time limit and the rac-only passage
func (r *Registry) ValidateShape(q *models.Question) error {
	if q == nil {
		return fmt.Errorf("question is required")
	}
	return r.validator.Validate(q)
}

// ValidateTest checks the enumerated test fields
func (r *Registry) ValidateTest(t *models.Test) error {
	if t == nil {
		return fmt.Errorf("test is required")
	}
	return r.validator.Validate(t)
}

func (r *Registry) validateQuestionStruct(sl validator.StructLevel) {
	q := sl.Current().Interface().(models.Question)
	spec, ok := r.specs[q.Type]
	if !ok {
		return
	}
	if !spec.AllowsTextRac && strings.TrimSpace(q.TextRac) != "" {
		sl.ReportError(q.TextRac, "textRac", "TextRac", "rac_only", "")
	}
}
