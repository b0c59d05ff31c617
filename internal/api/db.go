package api

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/kochizu/internal/db"
)

// maxQueryRows caps rows returned by /api/v1/query.
const maxQueryRows = 1000

// DBHandler handles database-related endpoints.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(conn *sql.DB) *DBHandler {
	return &DBHandler{db: conn}
}

// RegisterDB registers database routes with Huma.
func (h *DBHandler) RegisterDB(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := db.Tables(ctx, h.db)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"Read-only SQL query to execute" example:"SELECT * FROM spots"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body *db.Result
}

// Query executes a read-only SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if !readOnly(input.Body.Query) {
		return nil, huma.Error400BadRequest("Only SELECT, WITH, SHOW, DESCRIBE and SUMMARIZE queries are allowed")
	}
	res, err := db.Query(ctx, h.db, input.Body.Query, maxQueryRows)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	return &QueryOutput{Body: res}, nil
}

// writeWords are statements that change data or settings anywhere in a query,
// including inside a WITH clause.
var writeWords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|UPSERT|DROP|CREATE|ALTER|TRUNCATE|ATTACH|DETACH|COPY|EXPORT|IMPORT|INSTALL|LOAD|SET|RESET|PRAGMA|CALL|CHECKPOINT|VACUUM)\b`)

func readOnly(q string) bool {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "SHOW", "DESCRIBE", "SUMMARIZE", "FROM":
		if writeWords.MatchString(q) {
			return false
		}
		return !strings.Contains(strings.TrimRight(strings.TrimSpace(q), ";"), ";")
	}
	return false
}
