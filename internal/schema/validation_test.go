package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilimpoz/testbuilder-service/internal/models"
)

func kinds(errs []ValidationError) []ErrorKind {
	out := make([]ErrorKind, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Kind)
	}
	return out
}

func TestValidateQuestionForPublish(t *testing.T) {
	tests := []struct {
		name string
		data models.QuestionData
		want []ErrorKind
	}{
		{
			name: "complete question",
			data: models.QuestionData{
				Question: "2+0?",
				Answers:  []models.Answer{{Value: "2", IsCorrect: true}, {Value: "3"}},
			},
			want: []ErrorKind{},
		},
		{
			name: "image only counts as content",
			data: models.QuestionData{
				ImageURL: "https://cdn.example.com/q.png",
				Answers:  []models.Answer{{Value: "a", IsCorrect: true}, {Value: "b"}},
			},
			want: []ErrorKind{},
		},
		{
			name: "passage only counts as content",
			data: models.QuestionData{
				TextRac: "Read the passage",
				Answers: []models.Answer{{Value: "a"}, {Value: "b", IsCorrect: true}},
			},
			want: []ErrorKind{},
		},
		{
			name: "everything missing reports in order",
			data: models.QuestionData{},
			want: []ErrorKind{MissingContent, TooFewAnswers, UnfilledAnswers, NoCorrectAnswer},
		},
		{
			name: "blank answers do not count as filled",
			data: models.QuestionData{
				Question: "q",
				Answers:  []models.Answer{{Value: "  ", IsCorrect: true}, {Value: "b"}, {Value: ""}},
			},
			want: []ErrorKind{UnfilledAnswers, NoCorrectAnswer},
		},
		{
			name: "correct flag on an unfilled answer is ignored",
			data: models.QuestionData{
				Question: "q",
				Answers:  []models.Answer{{Value: "a"}, {Value: "b"}, {Value: "", IsCorrect: true}},
			},
			want: []ErrorKind{NoCorrectAnswer},
		},
		{
			name: "several correct answers are tolerated",
			data: models.QuestionData{
				Question: "q",
				Answers:  []models.Answer{{Value: "a", IsCorrect: true}, {Value: "b", IsCorrect: true}},
			},
			want: []ErrorKind{},
		},
		{
			name: "single answer",
			data: models.QuestionData{
				Question: "q",
				Answers:  []models.Answer{{Value: "a", IsCorrect: true}},
			},
			want: []ErrorKind{TooFewAnswers, UnfilledAnswers},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateQuestionForPublish(&tt.data)
			assert.Equal(t, tt.want, kinds(got))
		})
	}
}

func TestValidateTestForPublish(t *testing.T) {
	test := &models.Test{ID: "tmp-test-1-x", Section: models.SectionMath1}

	t.Run("NoQuestions", func(t *testing.T) {
		errs := ValidateTestForPublish(test, nil)
		require.Len(t, errs, 1)
		assert.Equal(t, NoQuestions, errs[0].Kind)
		assert.Zero(t, errs[0].QuestionIndex)
	})

	t.Run("IndexesAreOneBased", func(t *testing.T) {
		questions := []*models.Question{
			{ID: "a", Type: models.QuestionMath1, QuestionData: models.QuestionData{
				Question: "ok",
				Answers:  []models.Answer{{Value: "1", IsCorrect: true}, {Value: "2"}},
			}},
			{ID: "b", Type: models.QuestionMath1, QuestionData: models.QuestionData{
				Question: "no correct",
				Answers:  []models.Answer{{Value: "1"}, {Value: "2"}},
			}},
		}
		errs := ValidateTestForPublish(test, questions)
		require.Len(t, errs, 1)
		assert.Equal(t, NoCorrectAnswer, errs[0].Kind)
		assert.Equal(t, 2, errs[0].QuestionIndex)
		assert.Contains(t, errs[0].Message, "question 2")
		assert.Equal(t, []string{errs[0].Message}, Messages(errs))
	})
}
