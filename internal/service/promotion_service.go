package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/internal/repository"
	"bilimpoz/testbuilder-service/internal/schema"
	"bilimpoz/testbuilder-service/pkg/logger"
	"bilimpoz/testbuilder-service/pkg/metrics"
)

// Publish outcomes reported to metrics
const (
	OutcomePublished = "published"
	OutcomeInvalid   = "invalid"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

// Flusher writes pending autosave edits of a test to the draft store
type Flusher interface {
	FlushTest(ctx context.Context, testID string) error
}

// PublishResult is returned by Publish. Errors is set when the test did not
// pass validation; in that case nothing was sent to the remote store.
type PublishResult struct {
	Errors     []schema.ValidationError `json:"errors,omitempty"`
	Success    bool                     `json:"success"`
	SavedCount int                      `json:"savedCount"`
	Total      int                      `json:"total"`
	Test       *models.Test             `json:"test,omitempty"`
	Questions  []*models.Question       `json:"questions,omitempty"`
}

// SaveResult is returned by Save. Remote is false when the test only exists
// locally and nothing was sent to the remote store.
type SaveResult struct {
	Remote     bool               `json:"remote"`
	SavedCount int                `json:"savedCount"`
	Total      int                `json:"total"`
	Test       *models.Test       `json:"test"`
	Questions  []*models.Question `json:"questions"`
}

// PromotionService moves tests from the draft store to the remote store
type PromotionService struct {
	tests     repository.TestRepositoryInterface
	questions repository.QuestionRepositoryInterface
	drafts    draftstore.Store
	ids       *identity.Allocator
	flusher   Flusher
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewPromotionService(
	tests repository.TestRepositoryInterface,
	questions repository.QuestionRepositoryInterface,
	drafts draftstore.Store,
	ids *identity.Allocator,
	log *logger.Logger,
	m *metrics.Metrics,
) *PromotionService {
	return &PromotionService{
		tests:     tests,
		questions: questions,
		drafts:    drafts,
		ids:       ids,
		logger:    log,
		metrics:   m,
	}
}

// SetFlusher makes Save and Publish write pending autosave edits first
func (s *PromotionService) SetFlusher(f Flusher) {
	s.flusher = f
}

// Publish validates the test and, if it passes, pushes the test and its
// questions to the remote store and flips the status to published. When
// questions is nil the staged questions of the test are used.
func (s *PromotionService) Publish(ctx context.Context, test *models.Test, questions []*models.Question) (*PublishResult, error) {
	if err := checkTest(test); err != nil {
		return nil, err
	}
	log := s.logger.WithTestID(test.ID)

	prior, err := s.currentStatus(ctx, test)
	if err != nil {
		return nil, err
	}

	staged, err := s.stage(ctx, test, questions)
	if err != nil {
		return nil, err
	}

	kept, dropped := prune(staged)
	if errs := schema.ValidateTestForPublish(test, kept); len(errs) > 0 {
		s.metrics.RecordPublish(OutcomeInvalid)
		log.WithField("errors", len(errs)).Info("publish blocked by validation")
		return &PublishResult{Errors: errs, Total: len(kept)}, nil
	}

	rec := NewReconciliation(test.ID)
	for _, q := range dropped {
		rec.Drop(q.ID)
	}

	if rerr := s.upsertTest(ctx, rec, test); rerr != nil {
		s.metrics.RecordPublish(OutcomeFailed)
		return &PublishResult{Total: len(kept)}, rerr
	}

	saved, failures := s.pushQuestions(ctx, rec, kept)
	remaining, removalFailures, err := s.pushRemovals(ctx, rec.FromTestID(), rec.TestID())
	if err != nil {
		s.metrics.RecordPublish(OutcomeFailed)
		return &PublishResult{SavedCount: saved, Total: len(kept)}, err
	}
	failures = append(failures, removalFailures...)

	if len(failures) > 0 {
		t, qs, err := s.persistLocal(ctx, rec, test, kept, dropped, fallbackStatus(rec, prior), remaining)
		result := &PublishResult{SavedCount: saved, Total: len(kept), Test: t, Questions: qs}
		if err != nil {
			return result, err
		}
		s.metrics.RecordPublish(OutcomePartial)
		log.WithFields(logrus.Fields{"saved": saved, "total": len(kept)}).Warn("publish partially failed")
		return result, &PartialSaveError{Saved: saved, Total: len(kept), Failures: failures}
	}

	if rerr := s.call(ctx, OpStatusUpdate, rec.TestID(), rec.TestID(), func() error {
		return s.tests.SetTestStatus(ctx, rec.TestID(), models.StatusPublished)
	}); rerr != nil {
		t, qs, err := s.persistLocal(ctx, rec, test, kept, dropped, fallbackStatus(rec, prior), nil)
		result := &PublishResult{SavedCount: saved, Total: len(kept), Test: t, Questions: qs}
		if err != nil {
			return result, err
		}
		s.metrics.RecordPublish(OutcomeFailed)
		return result, rerr
	}

	t, qs := rec.Apply(test, kept, models.StatusPublished)
	s.cleanup(ctx, rec, kept, dropped)

	s.metrics.RecordPublish(OutcomePublished)
	log.WithFields(logrus.Fields{
		"durable_id": t.ID,
		"questions":  len(qs),
		"promoted":   len(rec.Promoted()),
	}).Info("test published")

	return &PublishResult{Success: true, SavedCount: saved, Total: len(kept), Test: t, Questions: qs}, nil
}

// Save persists the test without changing its status. A test that only has
// a temporary id is written to the draft store and nothing else; a durable
// test has its fields, questions and pending removals pushed remotely.
func (s *PromotionService) Save(ctx context.Context, test *models.Test, questions []*models.Question) (*SaveResult, error) {
	if err := checkTest(test); err != nil {
		return nil, err
	}

	staged, err := s.stage(ctx, test, questions)
	if err != nil {
		return nil, err
	}
	kept, dropped := prune(staged)

	rec := NewReconciliation(test.ID)
	for _, q := range dropped {
		rec.Drop(q.ID)
	}

	if identity.IsTemporary(test.ID) {
		t, qs, err := s.persistLocal(ctx, rec, test, kept, dropped, models.StatusDraft, nil)
		if err != nil {
			return nil, err
		}
		return &SaveResult{Total: len(qs), Test: t, Questions: qs}, nil
	}

	status, err := s.currentStatus(ctx, test)
	if err != nil {
		return nil, err
	}

	if rerr := s.upsertTest(ctx, rec, test); rerr != nil {
		return nil, rerr
	}

	saved, failures := s.pushQuestions(ctx, rec, kept)
	remaining, removalFailures, err := s.pushRemovals(ctx, rec.FromTestID(), rec.TestID())
	if err != nil {
		return nil, err
	}
	failures = append(failures, removalFailures...)

	t, qs, err := s.persistLocal(ctx, rec, test, kept, dropped, status, remaining)
	result := &SaveResult{Remote: true, SavedCount: saved, Total: len(kept), Test: t, Questions: qs}
	if err != nil {
		return result, err
	}
	if len(failures) > 0 {
		return result, &PartialSaveError{Saved: saved, Total: len(kept), Failures: failures}
	}
	return result, nil
}

func checkTest(test *models.Test) error {
	if test == nil || strings.TrimSpace(test.ID) == "" {
		return fmt.Errorf("%w: test id is required", ErrInvalidTest)
	}
	return nil
}

// stage writes the caller's view of the test to the draft store, or reads
// the staged questions back when the caller did not send any.
func (s *PromotionService) stage(ctx context.Context, test *models.Test, questions []*models.Question) ([]*models.Question, error) {
	if s.flusher != nil {
		if err := s.flusher.FlushTest(ctx, test.ID); err != nil {
			return nil, fmt.Errorf("failed to flush autosave: %w", err)
		}
	}

	if questions == nil {
		return s.stagedQuestions(ctx, test.ID)
	}

	staged := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if q == nil {
			continue
		}
		q = q.Clone()
		if q.ID == "" {
			q.ID = s.ids.NewTemporaryID(identity.KindQuestion)
		}
		if err := s.drafts.SaveQuestion(ctx, q.ID, q.Type, &q.QuestionData); err != nil {
			return nil, err
		}
		staged = append(staged, q)
	}
	if err := s.drafts.SaveMembership(ctx, test.ID, Membership(staged)); err != nil {
		return nil, err
	}
	if err := s.drafts.SaveTest(ctx, test); err != nil {
		return nil, err
	}
	return staged, nil
}

// stagedQuestions reads the questions of a test from the draft store. A
// durable test without a local membership list is read from the remote
// store, minus pending removals.
func (s *PromotionService) stagedQuestions(ctx context.Context, testID string) ([]*models.Question, error) {
	refs, err := s.drafts.LoadMembership(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 || !identity.IsDurable(testID) {
		return loadDraftQuestions(ctx, s.drafts, refs, nil)
	}

	remote, err := fetchRemote(ctx, s.tests, testID)
	if err != nil {
		return nil, err
	}
	if refs, err = remoteMembership(ctx, s.drafts, remote); err != nil {
		return nil, err
	}
	return loadDraftQuestions(ctx, s.drafts, refs, remoteByID(remote))
}

// prune separates questions with content from empty ones
func prune(questions []*models.Question) (kept, dropped []*models.Question) {
	for _, q := range questions {
		if q.IsEmpty() {
			dropped = append(dropped, q)
			continue
		}
		kept = append(kept, q)
	}
	return kept, dropped
}

func (s *PromotionService) currentStatus(ctx context.Context, test *models.Test) (models.Status, error) {
	if test.Status.Valid() {
		return test.Status, nil
	}
	flag, ok, err := s.drafts.GetStatusFlag(ctx, test.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return flag, nil
	}
	return models.StatusPublished, nil
}

// fallbackStatus is the status recorded locally when a publish stops before
// the status flip. A test that was already published stays published.
func fallbackStatus(rec *Reconciliation, prior models.Status) models.Status {
	if !rec.TestChanged() && prior == models.StatusPublished {
		return models.StatusPublished
	}
	return models.StatusDraft
}

func (s *PromotionService) call(ctx context.Context, op RemoteOp, testID, entityID string, fn func() error) *RemoteCallError {
	err := ctx.Err()
	if err == nil {
		err = fn()
		s.metrics.RecordRemoteCall(string(op), err)
	}
	if err == nil {
		return nil
	}
	s.logger.WithTestID(testID).WithFields(logrus.Fields{
		"op":        op,
		"entity_id": entityID,
	}).WithError(err).Warn("remote call failed")
	return &RemoteCallError{Op: op, EntityID: entityID, Err: err}
}

func testInput(test *models.Test) models.TestInput {
	return models.TestInput{
		Name:        test.Name,
		Description: test.Description,
		Language:    test.Language,
		Section:     test.Section,
		OwnerID:     test.OwnerID,
	}
}

// upsertTest creates the test remotely when its id is temporary and updates
// it in place otherwise. A durable id is never sent to create.
func (s *PromotionService) upsertTest(ctx context.Context, rec *Reconciliation, test *models.Test) *RemoteCallError {
	in := testInput(test)
	if identity.IsTemporary(test.ID) {
		var durableID string
		rerr := s.call(ctx, OpTestCreate, test.ID, test.ID, func() error {
			id, err := s.tests.CreateTest(ctx, in)
			durableID = id
			return err
		})
		if rerr != nil {
			return rerr
		}
		rec.MapTest(durableID)
		return nil
	}
	return s.call(ctx, OpTestUpdate, test.ID, test.ID, func() error {
		return s.tests.UpdateTest(ctx, test.ID, in)
	})
}

// pushQuestions sends every question in membership order, one at a time.
// A failure does not stop the remaining questions.
func (s *PromotionService) pushQuestions(ctx context.Context, rec *Reconciliation, questions []*models.Question) (int, []*RemoteCallError) {
	testID := rec.TestID()
	saved := 0
	var failures []*RemoteCallError

	for i, q := range questions {
		payload := &models.QuestionPayload{Type: q.Type, Position: i, Data: q.QuestionData}

		var rerr *RemoteCallError
		if identity.IsTemporary(q.ID) {
			var durableID string
			rerr = s.call(ctx, OpQuestionCreate, testID, q.ID, func() error {
				id, err := s.questions.CreateQuestion(ctx, testID, payload)
				durableID = id
				return err
			})
			if rerr == nil {
				rec.MapQuestion(q.ID, durableID)
			}
		} else {
			rerr = s.call(ctx, OpQuestionUpdate, testID, q.ID, func() error {
				return s.questions.UpdateQuestion(ctx, testID, q.ID, payload)
			})
		}

		if rerr != nil {
			failures = append(failures, rerr)
			continue
		}
		saved++
	}
	return saved, failures
}

// pushRemovals deletes remotely the durable questions removed locally and
// returns the ids whose deletion failed.
func (s *PromotionService) pushRemovals(ctx context.Context, fromTestID, testID string) ([]string, []*RemoteCallError, error) {
	ids, err := s.drafts.LoadRemovals(ctx, fromTestID)
	if err != nil {
		return nil, nil, err
	}

	var remaining []string
	var failures []*RemoteCallError
	for _, id := range ids {
		rerr := s.call(ctx, OpQuestionDelete, testID, id, func() error {
			return s.questions.DeleteQuestion(ctx, testID, id)
		})
		if rerr != nil {
			remaining = append(remaining, id)
			failures = append(failures, rerr)
		}
	}
	return remaining, failures, nil
}

// persistLocal records the reconciled test in the draft store under its
// current id: promoted payloads move to their durable ids, dropped payloads
// are removed and keys left under a replaced temporary test id are deleted.
func (s *PromotionService) persistLocal(
	ctx context.Context,
	rec *Reconciliation,
	test *models.Test,
	kept, dropped []*models.Question,
	status models.Status,
	removals []string,
) (*models.Test, []*models.Question, error) {
	t, qs := rec.Apply(test, kept, status)

	for _, q := range qs {
		if err := s.drafts.SaveQuestion(ctx, q.ID, q.Type, &q.QuestionData); err != nil {
			return t, qs, err
		}
	}
	if err := s.drafts.SaveTest(ctx, t); err != nil {
		return t, qs, err
	}
	if err := s.drafts.SaveMembership(ctx, t.ID, Membership(qs)); err != nil {
		return t, qs, err
	}
	if err := s.drafts.SetStatusFlag(ctx, t.ID, status); err != nil {
		return t, qs, err
	}
	if len(removals) > 0 {
		if err := s.drafts.SaveRemovals(ctx, t.ID, removals); err != nil {
			return t, qs, err
		}
	} else if err := s.drafts.DeleteRemovals(ctx, t.ID); err != nil {
		return t, qs, err
	}

	for _, q := range kept {
		if rec.Resolve(q.ID) != q.ID {
			s.forget(ctx, "question", q.ID, s.drafts.DeleteQuestion(ctx, q.ID, q.Type))
		}
	}
	for _, q := range dropped {
		s.forget(ctx, "question", q.ID, s.drafts.DeleteQuestion(ctx, q.ID, q.Type))
	}
	if rec.TestChanged() {
		s.deleteTestKeys(ctx, rec.FromTestID())
	}
	return t, qs, nil
}

// cleanup removes everything the draft store holds for a published test.
// The remote store is authoritative from here on.
func (s *PromotionService) cleanup(ctx context.Context, rec *Reconciliation, kept, dropped []*models.Question) {
	for _, q := range append(append([]*models.Question(nil), kept...), dropped...) {
		s.forget(ctx, "question", q.ID, s.drafts.DeleteQuestion(ctx, q.ID, q.Type))
	}
	s.deleteTestKeys(ctx, rec.TestID())
	if rec.TestChanged() {
		s.deleteTestKeys(ctx, rec.FromTestID())
	}
}

func (s *PromotionService) deleteTestKeys(ctx context.Context, testID string) {
	s.forget(ctx, "test", testID, s.drafts.DeleteTest(ctx, testID))
	s.forget(ctx, "membership", testID, s.drafts.DeleteMembership(ctx, testID))
	s.forget(ctx, "status", testID, s.drafts.ClearStatusFlag(ctx, testID))
	s.forget(ctx, "removals", testID, s.drafts.DeleteRemovals(ctx, testID))
}

// forget logs a failed cleanup delete. The remote state is already
// committed at that point, so the leftover key is only stale data.
func (s *PromotionService) forget(_ context.Context, kind, id string, err error) {
	if err == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{"kind": kind, "id": id}).WithError(err).Warn("failed to remove draft entry")
}
