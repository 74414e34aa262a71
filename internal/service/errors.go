package service

import (
	"errors"
	"fmt"
)

// RemoteOp names the remote store call that failed
type RemoteOp string

const (
	OpTestCreate     RemoteOp = "test-create"
	OpTestUpdate     RemoteOp = "test-update"
	OpQuestionCreate RemoteOp = "question-create"
	OpQuestionUpdate RemoteOp = "question-update"
	OpQuestionDelete RemoteOp = "question-delete"
	OpStatusUpdate   RemoteOp = "status-update"
)

var (
	ErrTestNotFound      = errors.New("test not found")
	ErrQuestionNotInTest = errors.New("question is not part of the test")
	ErrInvalidTest       = errors.New("invalid test")
)

// RemoteCallError is a failed call to the remote store. The engine never
// retries it; the user retries Save or Publish instead.
type RemoteCallError struct {
	Op       RemoteOp
	EntityID string
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// PartialSaveError reports that the test was persisted but some of its
// questions (or pending removals) were not.
type PartialSaveError struct {
	Saved    int
	Total    int
	Failures []*RemoteCallError
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("saved %d of %d questions", e.Saved, e.Total)
}

func (e *PartialSaveError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
