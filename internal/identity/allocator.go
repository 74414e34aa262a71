package identity

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// TemporaryPrefix marks identifiers allocated on the client side. Durable ids
// are UUIDs issued by the remote store and can never start with it.
const TemporaryPrefix = "tmp-"

// Kind is the entity an identifier is allocated for
type Kind string

const (
	KindTest     Kind = "test"
	KindQuestion Kind = "question"
)

// Allocator issues temporary identifiers.
// Format: tmp-<kind>-<seq>-<uuid> (e.g. tmp-question-7-1b4e28ba-2fa1-11d2-883f-0016d3cca427)
type Allocator struct {
	seq atomic.Uint64
}

// NewAllocator creates a new allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// NewTemporaryID returns an identifier that no other call of this allocator returns
func (a *Allocator) NewTemporaryID(kind Kind) string {
	n := a.seq.Add(1)
	return fmt.Sprintf("%s%s-%d-%s", TemporaryPrefix, kind, n, uuid.NewString())
}

// IsTemporary reports whether id was allocated client side
func IsTemporary(id string) bool {
	return strings.HasPrefix(id, TemporaryPrefix)
}

// IsDurable reports whether id was assigned by the remote store
func IsDurable(id string) bool {
	return id != "" && !IsTemporary(id)
}

// NewDurableID generates a remote store identifier (UUID v4)
func NewDurableID() string {
	return uuid.NewString()
}

// ValidateDurable checks that id is a well-formed durable identifier
func ValidateDurable(id string) error {
	if IsTemporary(id) {
		return fmt.Errorf("identifier %q is temporary", id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid durable identifier %q: %w", id, err)
	}
	return nil
}
