package schema

import (
	"fmt"
	"strings"

	"bilimpoz/testbuilder-service/internal/models"
)

// ErrorKind classifies a publish validation failure
type ErrorKind string

const (
	MissingContent  ErrorKind = "MISSING_CONTENT"
	TooFewAnswers   ErrorKind = "TOO_FEW_ANSWERS"
	UnfilledAnswers ErrorKind = "UNFILLED_ANSWERS"
	NoCorrectAnswer ErrorKind = "NO_CORRECT_ANSWER"
	NoQuestions     ErrorKind = "NO_QUESTIONS"
)

// MinAnswers is the minimum number of answers, and of filled answers
const MinAnswers = 2

// ValidationError is one reason a test cannot be published.
// QuestionIndex is 1-based; zero means the error concerns the whole test.
type ValidationError struct {
	Kind          ErrorKind `json:"kind"`
	QuestionIndex int       `json:"questionIndex,omitempty"`
	Message       string    `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidateQuestionForPublish checks content, answer count, filled answers and
// the correct flag, in that order.
func ValidateQuestionForPublish(data *models.QuestionData) []ValidationError {
	var errs []ValidationError

	if data.IsEmpty() {
		errs = append(errs, ValidationError{Kind: MissingContent, Message: "question text, image or passage is required"})
	}

	if len(data.Answers) < MinAnswers {
		errs = append(errs, ValidationError{Kind: TooFewAnswers, Message: fmt.Sprintf("at least %d answers are required", MinAnswers)})
	}

	filled := 0
	correct := 0
	for _, a := range data.Answers {
		if !a.Filled() {
			continue
		}
		filled++
		if a.IsCorrect {
			correct++
		}
	}
	if filled < MinAnswers {
		errs = append(errs, ValidationError{Kind: UnfilledAnswers, Message: fmt.Sprintf("at least %d answers must be filled in", MinAnswers)})
	}
	// More than one correct answer is tolerated; the editor enforces single select.
	if correct == 0 {
		errs = append(errs, ValidationError{Kind: NoCorrectAnswer, Message: "a correct answer must be selected"})
	}

	return errs
}

// ValidateTestForPublish validates every question and tags errors with the
// 1-based question position. A non-empty result blocks publication.
func ValidateTestForPublish(test *models.Test, questions []*models.Question) []ValidationError {
	if len(questions) == 0 {
		return []ValidationError{{Kind: NoQuestions, Message: "the test has no questions"}}
	}

	var errs []ValidationError
	for i, q := range questions {
		for _, e := range ValidateQuestionForPublish(&q.QuestionData) {
			e.QuestionIndex = i + 1
			e.Message = fmt.Sprintf("question %d: %s", i+1, e.Message)
			errs = append(errs, e)
		}
	}
	return errs
}

// Messages renders errors for display
func Messages(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, strings.TrimSpace(e.Message))
	}
	return out
}
