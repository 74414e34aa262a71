package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ColumnType represents expected column schema
type ColumnType struct {
	Name     string
	DataType string
	Nullable bool
}

// TableSchema represents expected table structure
type TableSchema struct {
	Name    string
	Columns []ColumnType
}

// SchemaGuard validates database schema matches expectations
type SchemaGuard struct {
	db *sql.DB
}

// NewSchemaGuard creates a new schema guard
func NewSchemaGuard(db *sql.DB) *SchemaGuard {
	return &SchemaGuard{db: db}
}

// TestBuilderSchemas lists the tables the remote test/question store writes to.
// tests deliberately has no status or section column.
func TestBuilderSchemas() []TableSchema {
	return []TableSchema{
		{
			Name: "tests",
			Columns: []ColumnType{
				{Name: "id", DataType: "char"},
				{Name: "owner_id", DataType: "varchar"},
				{Name: "name", DataType: "varchar"},
				{Name: "description", DataType: "text"},
				{Name: "language", DataType: "varchar"},
				{Name: "created_at", DataType: "timestamp"},
				{Name: "updated_at", DataType: "timestamp"},
			},
		},
		{
			Name: "questions",
			Columns: []ColumnType{
				{Name: "id", DataType: "char"},
				{Name: "test_id", DataType: "char"},
				{Name: "type", DataType: "varchar"},
				{Name: "position", DataType: "int"},
				{Name: "question", DataType: "text"},
				{Name: "answers", DataType: "json"},
				{Name: "points", DataType: "tinyint"},
				{Name: "time_limit", DataType: "smallint"},
				{Name: "image_url", DataType: "varchar", Nullable: true},
				{Name: "text_rac", DataType: "text", Nullable: true},
				{Name: "explanation_ai", DataType: "text", Nullable: true},
				{Name: "deleted_at", DataType: "timestamp", Nullable: true},
			},
		},
		{
			Name: "test_publications",
			Columns: []ColumnType{
				{Name: "test_id", DataType: "char"},
				{Name: "status", DataType: "varchar"},
				{Name: "updated_at", DataType: "timestamp"},
			},
		},
	}
}

// ValidateTable validates a table's schema
func (sg *SchemaGuard) ValidateTable(ctx context.Context, schema TableSchema) error {
	query := `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	rows, err := sg.db.QueryContext(ctx, query, schema.Name)
	if err != nil {
		return fmt.Errorf("failed to query table schema for %s: %w", schema.Name, err)
	}
	defer rows.Close()

	actualColumns := make(map[string]ColumnType)
	for rows.Next() {
		var colName, dataType, isNullable string
		if err := rows.Scan(&colName, &dataType, &isNullable); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		actualColumns[colName] = ColumnType{
			Name:     colName,
			DataType: dataType,
			Nullable: isNullable == "YES",
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read column info for %s: %w", schema.Name, err)
	}

	if len(actualColumns) == 0 {
		return fmt.Errorf("table %s does not exist or has no columns", schema.Name)
	}

	for _, expectedCol := range schema.Columns {
		actualCol, exists := actualColumns[expectedCol.Name]
		if !exists {
			return fmt.Errorf("table %s missing expected column: %s", schema.Name, expectedCol.Name)
		}

		if !matchesDataType(actualCol.DataType, expectedCol.DataType) {
			return fmt.Errorf("table %s column %s has type %s, expected %s",
				schema.Name, expectedCol.Name, actualCol.DataType, expectedCol.DataType)
		}
	}

	return nil
}

// matchesDataType checks if data types are compatible (varchar matches varchar(191))
func matchesDataType(actual, expected string) bool {
	actual = strings.ToLower(actual)
	expected = strings.ToLower(expected)
	if actual == expected {
		return true
	}
	return strings.HasPrefix(actual, expected)
}

// ValidateTables validates multiple tables
func (sg *SchemaGuard) ValidateTables(ctx context.Context, schemas []TableSchema) error {
	for _, schema := range schemas {
		if err := sg.ValidateTable(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
