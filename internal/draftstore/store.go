// Package draftstore is the local staging area for tests being edited. Every
// write is applied immediately; nothing is batched. Entities are keyed by
// their current identifier, temporary or durable.
package draftstore

import (
	"context"
	"errors"
	"fmt"

	"bilimpoz/testbuilder-service/internal/models"
)

// ErrUnavailable is wrapped by errors of a store that cannot be reached
var ErrUnavailable = errors.New("draftstore: store unavailable")

// Store persists drafts of tests, question payloads, membership lists and
// status flags.
type Store interface {
	SaveTest(ctx context.Context, test *models.Test) error
	LoadTest(ctx context.Context, id string) (*models.Test, bool, error)
	DeleteTest(ctx context.Context, id string) error

	SaveQuestion(ctx context.Context, id string, qType models.QuestionType, data *models.QuestionData) error
	LoadQuestion(ctx context.Context, id string, qType models.QuestionType) (*models.QuestionData, bool, error)
	DeleteQuestion(ctx context.Context, id string, qType models.QuestionType) error

	SaveMembership(ctx context.Context, testID string, members []models.MemberRef) error
	LoadMembership(ctx context.Context, testID string) ([]models.MemberRef, error)
	DeleteMembership(ctx context.Context, testID string) error

	SetStatusFlag(ctx context.Context, testID string, status models.Status) error
	GetStatusFlag(ctx context.Context, testID string) (models.Status, bool, error)
	ClearStatusFlag(ctx context.Context, testID string) error

	// Removals are durable question ids removed locally and not yet deleted remotely.
	SaveRemovals(ctx context.Context, testID string, ids []string) error
	LoadRemovals(ctx context.Context, testID string) ([]string, error)
	DeleteRemovals(ctx context.Context, testID string) error
}

// Error is returned by every failing store operation. It is fatal to the
// caller's current operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("draftstore: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Keys builds store keys under a prefix
type Keys struct {
	Prefix string
}

func (k Keys) Test(id string) string {
	return fmt.Sprintf("%s:test:%s", k.Prefix, id)
}

func (k Keys) Question(id string, qType models.QuestionType) string {
	return fmt.Sprintf("%s:question:%s:%s", k.Prefix, qType, id)
}

func (k Keys) Membership(testID string) string {
	return fmt.Sprintf("%s:membership:%s", k.Prefix, testID)
}

func (k Keys) Status(testID string) string {
	return fmt.Sprintf("%s:status:%s", k.Prefix, testID)
}

func (k Keys) Removals(testID string) string {
	return fmt.Sprintf("%s:removals:%s", k.Prefix, testID)
}
