package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
)

// QuestionRepositoryInterface defines the remote question operations
type QuestionRepositoryInterface interface {
	CreateQuestion(ctx context.Context, testID string, p *models.QuestionPayload) (string, error)
	UpdateQuestion(ctx context.Context, testID, questionID string, p *models.QuestionPayload) error
	DeleteQuestion(ctx context.Context, testID, questionID string) error
}

type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateQuestion inserts a question under testID and returns its durable id
func (r *QuestionRepository) CreateQuestion(ctx context.Context, testID string, p *models.QuestionPayload) (string, error) {
	if err := checkDurable(testID); err != nil {
		return "", err
	}
	answers, err := json.Marshal(p.Data.Answers)
	if err != nil {
		return "", fmt.Errorf("failed to encode answers: %w", err)
	}

	id := identity.NewDurableID()
	query := `
		INSERT INTO questions (id, test_id, type, position, question, answers, points, time_limit,
			image_url, text_rac, explanation_ai, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`
	_, err = r.db.ExecContext(ctx, query,
		id,
		testID,
		string(p.Type),
		p.Position,
		p.Data.Question,
		answers,
		p.Data.Points,
		p.Data.TimeLimit,
		nullString(p.Data.ImageURL),
		nullString(p.Data.TextRac),
		nullString(p.Data.ExplanationAI),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create question: %w", err)
	}
	return id, nil
}

// UpdateQuestion overwrites a live question that belongs to testID
func (r *QuestionRepository) UpdateQuestion(ctx context.Context, testID, questionID string, p *models.QuestionPayload) error {
	if err := checkDurable(testID); err != nil {
		return err
	}
	if err := checkDurable(questionID); err != nil {
		return err
	}
	answers, err := json.Marshal(p.Data.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	query := `
		UPDATE questions
		SET type = ?, position = ?, question = ?, answers = ?, points = ?, time_limit = ?,
			image_url = ?, text_rac = ?, explanation_ai = ?, updated_at = NOW()
		WHERE id = ? AND test_id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		string(p.Type),
		p.Position,
		p.Data.Question,
		answers,
		p.Data.Points,
		p.Data.TimeLimit,
		nullString(p.Data.ImageURL),
		nullString(p.Data.TextRac),
		nullString(p.Data.ExplanationAI),
		questionID,
		testID,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	if rows == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// DeleteQuestion soft deletes a question. Deleting an already deleted
// question succeeds so that retries are harmless.
func (r *QuestionRepository) DeleteQuestion(ctx context.Context, testID, questionID string) error {
	if err := checkDurable(testID); err != nil {
		return err
	}
	if err := checkDurable(questionID); err != nil {
		return err
	}
	query := `
		UPDATE questions
		SET deleted_at = NOW()
		WHERE id = ? AND test_id = ? AND deleted_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, questionID, testID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}
