package models

import "strings"

// QuestionType names one of the six question shapes
type QuestionType string

const (
	QuestionMath1    QuestionType = "math1"
	QuestionMath2    QuestionType = "math2"
	QuestionAnalogy  QuestionType = "analogy"
	QuestionRac      QuestionType = "rac"
	QuestionGrammar  QuestionType = "grammar"
	QuestionStandard QuestionType = "standard"
)

// Answer is one answer option
type Answer struct {
	Value     string `json:"value"`
	IsCorrect bool   `json:"isCorrect"`
}

// Filled reports whether the answer has non-blank text
func (a Answer) Filled() bool {
	return strings.TrimSpace(a.Value) != ""
}

// QuestionData is the payload persisted per question. It does not know which
// test owns it; ownership lives in the membership list.
type QuestionData struct {
	Question      string   `json:"question"`
	Answers       []Answer `json:"answers"`
	Points        int      `json:"points" validate:"min=1,max=5"`
	TimeLimit     int      `json:"timeLimit" validate:"min=1,max=120"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	TextRac       string   `json:"textRac,omitempty"`
	ExplanationAI string   `json:"explanationAi,omitempty"`
}

// IsEmpty reports whether the question has no text, no image and no passage
func (d *QuestionData) IsEmpty() bool {
	return strings.TrimSpace(d.Question) == "" &&
		strings.TrimSpace(d.ImageURL) == "" &&
		strings.TrimSpace(d.TextRac) == ""
}

// Clone returns a deep copy of d
func (d *QuestionData) Clone() *QuestionData {
	if d == nil {
		return nil
	}
	c := *d
	c.Answers = append([]Answer(nil), d.Answers...)
	return &c
}

// Question is a question with its identity and type
type Question struct {
	ID   string       `json:"id"`
	Type QuestionType `json:"type" validate:"question_type"`
	QuestionData
}

// Clone returns a deep copy of q
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	return &Question{ID: q.ID, Type: q.Type, QuestionData: *q.QuestionData.Clone()}
}

// Ref returns the membership entry for q
func (q *Question) Ref() MemberRef {
	return MemberRef{ID: q.ID, Type: q.Type}
}

// MemberRef is one entry of a test's ordered membership list
type MemberRef struct {
	ID   string       `json:"id"`
	Type QuestionType `json:"type"`
}

// QuestionPayload is what the remote store receives for create/update
type QuestionPayload struct {
	Type     QuestionType
	Position int
	Data     QuestionData
}
