package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
)

func samplePayload() *models.QuestionPayload {
	return &models.QuestionPayload{
		Type:     models.QuestionMath1,
		Position: 0,
		Data: models.QuestionData{
			Question:  "2+0?",
			Answers:   []models.Answer{{Value: "2", IsCorrect: true}, {Value: "3"}},
			Points:    1,
			TimeLimit: 60,
		},
	}
}

func TestQuestionRepository_CreateQuestion(t *testing.T) {
	testID := identity.NewDurableID()

	tests := []struct {
		name        string
		testID      string
		setupMock   func(sqlmock.Sqlmock)
		expectError error
	}{
		{
			name:   "successful creation",
			testID: testID,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO questions").
					WithArgs(
						sqlmock.AnyArg(), // id
						testID,
						"math1",
						0,
						"2+0?",
						[]byte(`[{"value":"2","isCorrect":true},{"value":"3","isCorrect":false}]`),
						1,
						60,
						nil, // image_url
						nil, // text_rac
						nil, // explanation_ai
					).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:   "database error",
			testID: testID,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO questions").
					WillReturnError(sql.ErrConnDone)
			},
			expectError: sql.ErrConnDone,
		},
		{
			name:        "temporary test id",
			testID:      "tmp-test-3-abc",
			setupMock:   func(sqlmock.Sqlmock) {},
			expectError: ErrInvalidID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewQuestionRepository(db)

			tt.setupMock(mock)

			id, err := repo.CreateQuestion(context.Background(), tt.testID, samplePayload())
			if tt.expectError != nil {
				assert.True(t, errors.Is(err, tt.expectError), "got %v", err)
				assert.Empty(t, id)
			} else {
				require.NoError(t, err)
				assert.True(t, identity.IsDurable(id))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQuestionRepository_UpdateQuestion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuestionRepository(db)
	testID := identity.NewDurableID()
	questionID := identity.NewDurableID()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE questions").
			WithArgs("math1", 0, "2+0?", sqlmock.AnyArg(), 1, 60, nil, nil, nil, questionID, testID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateQuestion(context.Background(), testID, questionID, samplePayload()))
	})

	t.Run("Deleted", func(t *testing.T) {
		mock.ExpectExec("UPDATE questions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateQuestion(context.Background(), testID, questionID, samplePayload())
		assert.True(t, errors.Is(err, ErrQuestionNotFound))
	})

	t.Run("TemporaryQuestionID", func(t *testing.T) {
		err := repo.UpdateQuestion(context.Background(), testID, "tmp-question-1-x", samplePayload())
		assert.True(t, errors.Is(err, ErrInvalidID))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepository_DeleteQuestion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewQuestionRepository(db)
	testID := identity.NewDurableID()
	questionID := identity.NewDurableID()

	mock.ExpectExec("UPDATE questions\\s+SET deleted_at = NOW\\(\\)").
		WithArgs(questionID, testID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteQuestion(context.Background(), testID, questionID))
	require.NoError(t, mock.ExpectationsWereMet())
}
