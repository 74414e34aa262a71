package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var publicationsSchema = TableSchema{
	Name: "test_publications",
	Columns: []ColumnType{
		{Name: "test_id", DataType: "char"},
		{Name: "status", DataType: "varchar"},
		{Name: "updated_at", DataType: "timestamp"},
	},
}

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"})
}

func TestSchemaGuard_ValidateTable(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr string
	}{
		{
			name: "matching columns",
			rows: columnRows().
				AddRow("test_id", "char", "NO").
				AddRow("status", "varchar", "NO").
				AddRow("updated_at", "timestamp", "YES"),
		},
		{
			name: "missing column",
			rows: columnRows().
				AddRow("test_id", "char", "NO").
				AddRow("updated_at", "timestamp", "NO"),
			wantErr: "missing expected column: status",
		},
		{
			name: "type mismatch",
			rows: columnRows().
				AddRow("test_id", "int", "NO").
				AddRow("status", "varchar", "NO").
				AddRow("updated_at", "timestamp", "NO"),
			wantErr: "column test_id has type int, expected char",
		},
		{
			name:    "missing table",
			rows:    columnRows(),
			wantErr: "does not exist or has no columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer conn.Close()

			mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
				WithArgs("test_publications").
				WillReturnRows(tt.rows)

			err = NewSchemaGuard(conn).ValidateTable(context.Background(), publicationsSchema)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSchemaGuard_ValidateTables_StopsAtFirstFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("tests").
		WillReturnError(errors.New("connection refused"))

	err = NewSchemaGuard(conn).ValidateTables(context.Background(), TestBuilderSchemas())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query table schema for tests")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchesDataType(t *testing.T) {
	assert.True(t, matchesDataType("VARCHAR", "varchar"))
	assert.True(t, matchesDataType("varchar(191)", "varchar"))
	assert.False(t, matchesDataType("text", "varchar"))
}
