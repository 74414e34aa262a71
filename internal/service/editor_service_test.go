package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/internal/schema"
	"bilimpoz/testbuilder-service/pkg/helpers"
)

func TestEditorService_CreateDraftTest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		test, err := f.editor.CreateDraftTest(ctx, models.TestInput{Name: "Grammar", Language: models.LanguageKG, OwnerID: "teacher-1"})
		require.NoError(t, err)
		assert.True(t, identity.IsTemporary(test.ID))
		assert.Equal(t, models.StatusDraft, test.Status)
		assert.Equal(t, models.SectionStandard, test.Section)

		session, err := f.editor.LoadForEditing(ctx, test.ID)
		require.NoError(t, err)
		assert.Equal(t, "Grammar", session.Test.Name)
		assert.Empty(t, session.Questions)
		assert.Zero(t, f.remote.total())
	})

	t.Run("InvalidLanguage", func(t *testing.T) {
		_, err := f.editor.CreateDraftTest(ctx, models.TestInput{Name: "x", Language: "en"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTest))
		fields := helpers.FieldErrors(err)
		assert.NotContains(t, fields, "_")
	})
}

func TestEditorService_AddAndRemoveDraftQuestion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	test, err := f.editor.CreateDraftTest(ctx, models.TestInput{Name: "Analogies", Language: models.LanguageRU})
	require.NoError(t, err)

	first, err := f.editor.AddDraftQuestion(ctx, test.ID, models.QuestionAnalogy)
	require.NoError(t, err)
	second, err := f.editor.AddDraftQuestion(ctx, test.ID, models.QuestionAnalogy)
	require.NoError(t, err)

	assert.True(t, identity.IsTemporary(first.ID))
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, first.Answers, schema.DefaultAnswerCount)
	assert.Equal(t, schema.DefaultPoints, first.Points)
	assert.Equal(t, schema.DefaultTimeLimit, first.TimeLimit)

	_, err = f.editor.AddDraftQuestion(ctx, test.ID, "essay")
	assert.ErrorIs(t, err, schema.ErrUnknownType)

	require.NoError(t, f.editor.RemoveDraftQuestion(ctx, test.ID, first.ID))
	assert.ErrorIs(t, f.editor.RemoveDraftQuestion(ctx, test.ID, first.ID), ErrQuestionNotInTest)

	session, err := f.editor.LoadForEditing(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, session.Questions, 1)
	assert.Equal(t, second.ID, session.Questions[0].ID)

	removals, err := f.drafts.LoadRemovals(ctx, test.ID)
	require.NoError(t, err)
	assert.Empty(t, removals, "temporary questions never need a remote delete")
}

func TestEditorService_UnknownTest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.editor.AddDraftQuestion(ctx, "tmp-test-9-missing", models.QuestionMath1)
	assert.ErrorIs(t, err, ErrTestNotFound)

	_, err = f.editor.LoadForEditing(ctx, identity.NewDurableID())
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestEditorService_QuestionRef(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	test, err := f.editor.CreateDraftTest(ctx, models.TestInput{Name: "Reading", Language: models.LanguageRU})
	require.NoError(t, err)
	q, err := f.editor.AddDraftQuestion(ctx, test.ID, models.QuestionRac)
	require.NoError(t, err)

	ref, err := f.editor.QuestionRef(ctx, test.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MemberRef{ID: q.ID, Type: models.QuestionRac}, ref)

	_, err = f.editor.QuestionRef(ctx, test.ID, "tmp-question-99-x")
	assert.ErrorIs(t, err, ErrQuestionNotInTest)

	_, err = f.editor.QuestionRef(ctx, "tmp-test-99-x", q.ID)
	assert.ErrorIs(t, err, ErrTestNotFound)

	seeded := &models.Question{ID: identity.NewDurableID(), Type: models.QuestionGrammar, QuestionData: validData("seeded")}
	testID := f.remote.seed(seeded)
	ref, err = f.editor.QuestionRef(ctx, testID, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionGrammar, ref.Type)
}

func TestEditorService_LoadForEditing_LocalOverlay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := &models.Question{ID: identity.NewDurableID(), Type: models.QuestionGrammar, QuestionData: validData("remote text")}
	testID := f.remote.seed(q)

	edited := validData("local text")
	require.NoError(t, f.drafts.SaveQuestion(ctx, q.ID, q.Type, &edited))
	require.NoError(t, f.drafts.SaveTest(ctx, &models.Test{ID: testID, Name: "Renamed", Language: models.LanguageKG, Section: models.SectionRac}))

	session, err := f.editor.LoadForEditing(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", session.Test.Name)
	assert.Equal(t, models.LanguageKG, session.Test.Language)
	assert.Equal(t, models.SectionRac, session.Test.Section)
	assert.Equal(t, models.StatusPublished, session.Test.Status)
	require.Len(t, session.Questions, 1)
	assert.Equal(t, "local text", session.Questions[0].Question)
}

func TestDeriveSection(t *testing.T) {
	q := func(types ...models.QuestionType) []*models.Question {
		out := make([]*models.Question, len(types))
		for i, tp := range types {
			out[i] = &models.Question{Type: tp}
		}
		return out
	}

	tests := []struct {
		name      string
		questions []*models.Question
		want      models.Section
	}{
		{"no questions", nil, models.SectionStandard},
		{"single type", q(models.QuestionRac, models.QuestionRac), models.SectionRac},
		{"most common wins", q(models.QuestionMath1, models.QuestionMath2, models.QuestionMath2), models.SectionMath2},
		{"tie goes to first seen", q(models.QuestionGrammar, models.QuestionAnalogy, models.QuestionAnalogy, models.QuestionGrammar), models.SectionGrammar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveSection(tt.questions))
		})
	}
}
