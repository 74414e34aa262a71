package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoftDeleteQuery_Build(t *testing.T) {
	tests := []struct {
		name      string
		query     *SoftDeleteQuery
		wantSQL   string
		wantParam []interface{}
	}{
		{
			name:      "filter only",
			query:     NewSoftDeleteQuery("SELECT id FROM questions", "questions"),
			wantSQL:   "SELECT id FROM questions WHERE questions.deleted_at IS NULL",
			wantParam: []interface{}{},
		},
		{
			name: "conditions and order",
			query: NewSoftDeleteQuery("SELECT id FROM questions", "questions").
				Where("questions.test_id = ?", "t-1").
				OrderBy("questions.position ASC"),
			wantSQL:   "SELECT id FROM questions WHERE questions.test_id = ? AND questions.deleted_at IS NULL ORDER BY questions.position ASC",
			wantParam: []interface{}{"t-1"},
		},
		{
			name: "custom delete column",
			query: NewSoftDeleteQuery("SELECT id FROM tests", "tests").
				WithDeleteColumn("archived_at"),
			wantSQL:   "SELECT id FROM tests WHERE tests.archived_at IS NULL",
			wantParam: []interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := tt.query.Build()
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParam, params)
		})
	}
}
