package service

import (
	"context"
	"errors"
	"fmt"

	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/internal/repository"
)

// loadDraftQuestions assembles questions in membership order. A member
// without a local payload falls back to remote; members found in neither
// are skipped.
func loadDraftQuestions(ctx context.Context, store draftstore.Store, refs []models.MemberRef, remote map[string]*models.Question) ([]*models.Question, error) {
	questions := make([]*models.Question, 0, len(refs))
	for _, ref := range refs {
		data, ok, err := store.LoadQuestion(ctx, ref.ID, ref.Type)
		if err != nil {
			return nil, err
		}
		if ok {
			questions = append(questions, &models.Question{ID: ref.ID, Type: ref.Type, QuestionData: *data})
			continue
		}
		if q, found := remote[ref.ID]; found {
			questions = append(questions, q.Clone())
		}
	}
	return questions, nil
}

// fetchRemote reads a durable test. A missing test, or an id the remote
// store cannot hold, is ErrTestNotFound.
func fetchRemote(ctx context.Context, tests repository.TestRepositoryInterface, id string) (*models.RemoteTest, error) {
	remote, err := tests.GetTest(ctx, id)
	if errors.Is(err, repository.ErrTestNotFound) || errors.Is(err, repository.ErrInvalidID) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	return remote, nil
}

// remoteMembership lists the remote questions not pending removal
func remoteMembership(ctx context.Context, store draftstore.Store, remote *models.RemoteTest) ([]models.MemberRef, error) {
	removals, err := store.LoadRemovals(ctx, remote.ID)
	if err != nil {
		return nil, err
	}
	removed := make(map[string]bool, len(removals))
	for _, id := range removals {
		removed[id] = true
	}

	refs := make([]models.MemberRef, 0, len(remote.Questions))
	for _, q := range remote.Questions {
		if !removed[q.ID] {
			refs = append(refs, q.Ref())
		}
	}
	return refs, nil
}

func remoteByID(remote *models.RemoteTest) map[string]*models.Question {
	byID := make(map[string]*models.Question, len(remote.Questions))
	for _, q := range remote.Questions {
		byID[q.ID] = q
	}
	return byID
}

// DeriveSection picks the section of a test from its questions: the most
// common question type, ties going to the type seen first. A test without
// questions is standard.
func DeriveSection(questions []*models.Question) models.Section {
	counts := make(map[models.QuestionType]int)
	var order []models.QuestionType
	for _, q := range questions {
		if _, seen := counts[q.Type]; !seen {
			order = append(order, q.Type)
		}
		counts[q.Type]++
	}

	best := models.QuestionStandard
	bestCount := 0
	for _, t := range order {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	return models.Section(best)
}
