package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/pkg/db"
)

var (
	ErrTestNotFound     = errors.New("test not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidID        = errors.New("invalid durable identifier")
)

// TestRepositoryInterface defines the remote test operations
type TestRepositoryInterface interface {
	CreateTest(ctx context.Context, in models.TestInput) (string, error)
	UpdateTest(ctx context.Context, id string, in models.TestInput) error
	SetTestStatus(ctx context.Context, id string, status models.Status) error
	GetTest(ctx context.Context, id string) (*models.RemoteTest, error)
}

type TestRepository struct {
	db *sql.DB
}

func NewTestRepository(db *sql.DB) *TestRepository {
	return &TestRepository{db: db}
}

func checkDurable(id string) error {
	if err := identity.ValidateDurable(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return nil
}

// CreateTest inserts a test row and returns its new durable id.
// The section is not part of the tests table.
func (r *TestRepository) CreateTest(ctx context.Context, in models.TestInput) (string, error) {
	id := identity.NewDurableID()
	query := `
		INSERT INTO tests (id, owner_id, name, description, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query, id, in.OwnerID, in.Name, in.Description, string(in.Language))
	if err != nil {
		return "", fmt.Errorf("failed to create test: %w", err)
	}
	return id, nil
}

// UpdateTest rewrites the editable fields of an existing test
func (r *TestRepository) UpdateTest(ctx context.Context, id string, in models.TestInput) error {
	if err := checkDurable(id); err != nil {
		return err
	}
	query := `
		UPDATE tests
		SET name = ?, description = ?, language = ?, updated_at = NOW()
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, in.Name, in.Description, string(in.Language), id)
	if err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	if rows == 0 {
		return ErrTestNotFound
	}
	return nil
}

// SetTestStatus records the publication state outside the tests row
func (r *TestRepository) SetTestStatus(ctx context.Context, id string, status models.Status) error {
	if err := checkDurable(id); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	query := `
		INSERT INTO test_publications (test_id, status, updated_at)
		VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE status = ?, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, id, string(status), string(status)); err != nil {
		return fmt.Errorf("failed to set test status: %w", err)
	}
	return nil
}

// GetTest loads a test with its live questions in position order
func (r *TestRepository) GetTest(ctx context.Context, id string) (*models.RemoteTest, error) {
	if err := checkDurable(id); err != nil {
		return nil, err
	}
	query := `
		SELECT id, owner_id, name, description, language, created_at, updated_at
		FROM tests
		WHERE id = ?
	`

	var test models.RemoteTest
	var language string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&test.ID,
		&test.OwnerID,
		&test.Name,
		&test.Description,
		&language,
		&test.CreatedAt,
		&test.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	test.Language = models.Language(language)

	rows, err := db.NewSoftDeleteQuery(`
		SELECT questions.id, questions.type, questions.question, questions.answers, questions.points,
			questions.time_limit, questions.image_url, questions.text_rac, questions.explanation_ai
		FROM questions`, "questions").
		Where("questions.test_id = ?", id).
		OrderBy("questions.position ASC, questions.created_at ASC").
		QueryRows(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q models.Question
		var qType string
		var answers []byte
		var imageURL, textRac, explanation sql.NullString
		if err := rows.Scan(
			&q.ID,
			&qType,
			&q.Question,
			&answers,
			&q.Points,
			&q.TimeLimit,
			&imageURL,
			&textRac,
			&explanation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		q.Type = models.QuestionType(qType)
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &q.Answers); err != nil {
				return nil, fmt.Errorf("failed to decode answers of question %s: %w", q.ID, err)
			}
		}
		q.ImageURL = imageURL.String
		q.TextRac = textRac.String
		q.ExplanationAI = explanation.String
		test.Questions = append(test.Questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	return &test, nil
}
