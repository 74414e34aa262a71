package models

import "time"

// Status is the publication state of a test
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Language of a test
type Language string

const (
	LanguageRU Language = "ru"
	LanguageKG Language = "kg"
)

// Section groups tests by subject. It only lives in the local representation;
// the remote tests row does not store it.
type Section string

const (
	SectionMath1    Section = "math1"
	SectionMath2    Section = "math2"
	SectionAnalogy  Section = "analogy"
	SectionRac      Section = "rac"
	SectionGrammar  Section = "grammar"
	SectionStandard Section = "standard"
)

// Test represents a multi-question test as the editor sees it
type Test struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"max=255"`
	Description string    `json:"description"`
	Language    Language  `json:"language" validate:"oneof=ru kg"`
	Section     Section   `json:"section" validate:"oneof=math1 math2 analogy rac grammar standard"`
	Status      Status    `json:"status"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a copy of t
func (t *Test) Clone() *Test {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// TestInput carries the fields sent to the remote store on create/update
type TestInput struct {
	Name        string
	Description string
	Language    Language
	Section     Section
	OwnerID     string
}

// RemoteTest is a test as returned by the remote store: no status, no section
type RemoteTest struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Language    Language
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Questions   []*Question
}
