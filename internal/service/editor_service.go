package service

import (
	"context"
	"fmt"
	"time"

	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/internal/repository"
	"bilimpoz/testbuilder-service/internal/schema"
	"bilimpoz/testbuilder-service/pkg/logger"
)

// EditingSession is a test with its questions in membership order
type EditingSession struct {
	Test      *models.Test       `json:"test"`
	Questions []*models.Question `json:"questions"`
}

// EditorService implements the local editing operations
type EditorService struct {
	tests    repository.TestRepositoryInterface
	drafts   draftstore.Store
	registry *schema.Registry
	ids      *identity.Allocator
	logger   *logger.Logger
}

func NewEditorService(
	tests repository.TestRepositoryInterface,
	drafts draftstore.Store,
	registry *schema.Registry,
	ids *identity.Allocator,
	log *logger.Logger,
) *EditorService {
	return &EditorService{
		tests:    tests,
		drafts:   drafts,
		registry: registry,
		ids:      ids,
		logger:   log,
	}
}

// CreateDraftTest starts a new test that only exists in the draft store
func (s *EditorService) CreateDraftTest(ctx context.Context, in models.TestInput) (*models.Test, error) {
	now := time.Now().UTC()
	test := &models.Test{
		ID:          s.ids.NewTemporaryID(identity.KindTest),
		Name:        in.Name,
		Description: in.Description,
		Language:    in.Language,
		Section:     in.Section,
		Status:      models.StatusDraft,
		OwnerID:     in.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if test.Section == "" {
		test.Section = models.SectionStandard
	}
	if err := s.registry.ValidateTest(test); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTest, err)
	}

	if err := s.drafts.SaveTest(ctx, test); err != nil {
		return nil, err
	}
	if err := s.drafts.SaveMembership(ctx, test.ID, []models.MemberRef{}); err != nil {
		return nil, err
	}
	if err := s.drafts.SetStatusFlag(ctx, test.ID, models.StatusDraft); err != nil {
		return nil, err
	}

	s.logger.WithTestID(test.ID).Info("draft test created")
	return test, nil
}

// AddDraftQuestion appends a question with the type's defaults to the test
func (s *EditorService) AddDraftQuestion(ctx context.Context, testID string, qType models.QuestionType) (*models.Question, error) {
	data, err := s.registry.NewQuestionData(qType)
	if err != nil {
		return nil, err
	}
	refs, err := s.membership(ctx, testID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		ID:           s.ids.NewTemporaryID(identity.KindQuestion),
		Type:         qType,
		QuestionData: *data,
	}
	if err := s.drafts.SaveQuestion(ctx, q.ID, q.Type, &q.QuestionData); err != nil {
		return nil, err
	}
	if err := s.drafts.SaveMembership(ctx, testID, append(refs, q.Ref())); err != nil {
		return nil, err
	}
	return q, nil
}

// RemoveDraftQuestion drops a question from the test. Removing a durable
// question is remembered and sent to the remote store on the next Save or
// Publish.
func (s *EditorService) RemoveDraftQuestion(ctx context.Context, testID, questionID string) error {
	refs, err := s.membership(ctx, testID)
	if err != nil {
		return err
	}

	idx := -1
	for i, ref := range refs {
		if ref.ID == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrQuestionNotInTest
	}
	ref := refs[idx]
	refs = append(refs[:idx:idx], refs[idx+1:]...)

	if err := s.drafts.SaveMembership(ctx, testID, refs); err != nil {
		return err
	}
	if err := s.drafts.DeleteQuestion(ctx, ref.ID, ref.Type); err != nil {
		return err
	}

	if identity.IsDurable(ref.ID) {
		removals, err := s.drafts.LoadRemovals(ctx, testID)
		if err != nil {
			return err
		}
		for _, id := range removals {
			if id == ref.ID {
				return nil
			}
		}
		if err := s.drafts.SaveRemovals(ctx, testID, append(removals, ref.ID)); err != nil {
			return err
		}
	}
	return nil
}

// QuestionRef returns the membership entry of a question of the test
func (s *EditorService) QuestionRef(ctx context.Context, testID, questionID string) (models.MemberRef, error) {
	refs, err := s.membership(ctx, testID)
	if err != nil {
		return models.MemberRef{}, err
	}
	for _, ref := range refs {
		if ref.ID == questionID {
			return ref, nil
		}
	}
	return models.MemberRef{}, ErrQuestionNotInTest
}

// LoadForEditing returns the test as the editor should show it. A durable
// test is read from the remote store and overlaid with whatever the draft
// store holds for it.
func (s *EditorService) LoadForEditing(ctx context.Context, id string) (*EditingSession, error) {
	if identity.IsTemporary(id) {
		return s.loadLocal(ctx, id)
	}

	remote, err := fetchRemote(ctx, s.tests, id)
	if err != nil {
		return nil, err
	}

	test := &models.Test{
		ID:          remote.ID,
		Name:        remote.Name,
		Description: remote.Description,
		Language:    remote.Language,
		OwnerID:     remote.OwnerID,
		CreatedAt:   remote.CreatedAt,
		UpdatedAt:   remote.UpdatedAt,
	}
	local, ok, err := s.drafts.LoadTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		test.Name = local.Name
		test.Description = local.Description
		test.Language = local.Language
		test.Section = local.Section
	}
	if test.Section == "" {
		test.Section = DeriveSection(remote.Questions)
	}

	test.Status = models.StatusPublished
	flag, ok, err := s.drafts.GetStatusFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		test.Status = flag
	}

	refs, err := s.drafts.LoadMembership(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		if refs, err = remoteMembership(ctx, s.drafts, remote); err != nil {
			return nil, err
		}
	}

	questions, err := loadDraftQuestions(ctx, s.drafts, refs, remoteByID(remote))
	if err != nil {
		return nil, err
	}

	return &EditingSession{Test: test, Questions: questions}, nil
}

func (s *EditorService) loadLocal(ctx context.Context, id string) (*EditingSession, error) {
	test, ok, err := s.drafts.LoadTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTestNotFound
	}
	test.Status = models.StatusDraft

	refs, err := s.drafts.LoadMembership(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := loadDraftQuestions(ctx, s.drafts, refs, nil)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(refs) {
		s.logger.WithTestID(id).Warnf("%d members have no payload", len(refs)-len(questions))
	}
	return &EditingSession{Test: test, Questions: questions}, nil
}

// membership returns the local membership list, seeding it from the remote
// store for a durable test that has none yet.
func (s *EditorService) membership(ctx context.Context, testID string) ([]models.MemberRef, error) {
	refs, err := s.drafts.LoadMembership(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return refs, nil
	}

	if identity.IsTemporary(testID) {
		_, ok, err := s.drafts.LoadTest(ctx, testID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTestNotFound
		}
		return refs, nil
	}

	remote, err := fetchRemote(ctx, s.tests, testID)
	if err != nil {
		return nil, err
	}
	return remoteMembership(ctx, s.drafts, remote)
}
