package service

import (
	"bilimpoz/testbuilder-service/internal/models"
)

// Reconciliation collects identity changes made while promoting a test:
// temporary ids mapped to the durable ids the remote store returned, and
// questions pruned before any remote call. It is filled during the remote
// calls and applied in one step afterwards.
type Reconciliation struct {
	fromTestID string
	toTestID   string
	questions  map[string]string
	dropped    map[string]struct{}
}

func NewReconciliation(testID string) *Reconciliation {
	return &Reconciliation{
		fromTestID: testID,
		toTestID:   testID,
		questions:  make(map[string]string),
		dropped:    make(map[string]struct{}),
	}
}

// MapTest records the durable id adopted by the test
func (r *Reconciliation) MapTest(durableID string) {
	r.toTestID = durableID
}

// MapQuestion records that the question temporaryID now lives under durableID
func (r *Reconciliation) MapQuestion(temporaryID, durableID string) {
	r.questions[temporaryID] = durableID
}

// Drop excludes a question from the reconciled membership
func (r *Reconciliation) Drop(id string) {
	r.dropped[id] = struct{}{}
}

// FromTestID is the test id before promotion
func (r *Reconciliation) FromTestID() string {
	return r.fromTestID
}

// TestID is the test id after promotion
func (r *Reconciliation) TestID() string {
	return r.toTestID
}

// TestChanged reports whether the test moved to a new id
func (r *Reconciliation) TestChanged() bool {
	return r.fromTestID != r.toTestID
}

// Resolve returns the id that replaces id, or id itself
func (r *Reconciliation) Resolve(id string) string {
	if to, ok := r.questions[id]; ok {
		return to
	}
	return id
}

// Promoted returns the temporary question ids that received a durable id
func (r *Reconciliation) Promoted() map[string]string {
	out := make(map[string]string, len(r.questions))
	for k, v := range r.questions {
		out[k] = v
	}
	return out
}

// Apply returns copies of test and questions with every identity rewritten,
// dropped questions removed and the test status set to status. The inputs
// are left untouched.
func (r *Reconciliation) Apply(test *models.Test, questions []*models.Question, status models.Status) (*models.Test, []*models.Question) {
	out := test.Clone()
	out.ID = r.toTestID
	out.Status = status

	reconciled := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if _, ok := r.dropped[q.ID]; ok {
			continue
		}
		c := q.Clone()
		c.ID = r.Resolve(q.ID)
		reconciled = append(reconciled, c)
	}
	return out, reconciled
}

// Membership builds the ordered membership list of questions
func Membership(questions []*models.Question) []models.MemberRef {
	refs := make([]models.MemberRef, len(questions))
	for i, q := range questions {
		refs[i] = q.Ref()
	}
	return refs
}
