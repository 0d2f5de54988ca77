package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/reports"
)

type mockLLM struct {
	sql      string
	requests []llm.Request
	err      error
}

func (m *mockLLM) Model() string { return "small" }

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if strings.Contains(req.User, "Respond with the SQL query only") {
		return m.sql, nil
	}
	return "The total rent is 3500, computed by summing the Rent column.", nil
}

func dataset(t *testing.T) *reports.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "r.sqlite")
	rw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = rw.Exec(`CREATE TABLE "Rent Roll" ("Tenant" TEXT, "Rent" INTEGER, "Create Date" TEXT)`)
	require.NoError(t, err)
	_, err = rw.Exec(`INSERT INTO "Rent Roll" VALUES ('Acme', 1200, '2024-01-01'), ('Beta', 800, '2024-02-01'), ('Gamma', 1500, '2024-03-01')`)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &reports.Dataset{
		DB:      db,
		Table:   "Rent Roll",
		Columns: []reports.Column{{Name: "Tenant", Type: "TEXT"}, {Name: "Rent", Type: "INTEGER"}, {Name: "Create Date", Type: "TEXT"}},
	}
}

func TestQuery(t *testing.T) {
	m := &mockLLM{sql: "```sql\nSELECT SUM(\"Rent\") AS total FROM \"Rent Roll\";\n```"}
	e, err := BuildRelationalQueryEngine(dataset(t), m, config.Reports{MaxResultRows: 10})
	require.NoError(t, err)

	answer, err := e.Query(context.Background(), "What is the total rent?")
	require.NoError(t, err)
	assert.Contains(t, answer, "3500")

	require.Len(t, m.requests, 2)
	assert.Contains(t, m.requests[0].User, `"Rent" INTEGER`)
	assert.Equal(t, config.SQLGenTemperature, m.requests[0].Temperature)

	explain := m.requests[1]
	assert.Contains(t, explain.System, "explain how the answer was computed")
	assert.Contains(t, explain.User, `SELECT SUM("Rent") AS total FROM "Rent Roll"`)
	assert.Contains(t, explain.User, "total\n3500")
}

func TestQuery_RowLimit(t *testing.T) {
	m := &mockLLM{sql: `SELECT "Tenant" FROM "Rent Roll" ORDER BY "Tenant"`}
	e, err := BuildRelationalQueryEngine(dataset(t), m, config.Reports{MaxResultRows: 2})
	require.NoError(t, err)

	_, err = e.Query(context.Background(), "list tenants")
	require.NoError(t, err)
	user := m.requests[1].User
	assert.Contains(t, user, "Acme\nBeta\n... truncated after 2 rows")
	assert.NotContains(t, user, "Gamma")
}

func TestQuery_Guard(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want error
	}{
		{"delete", `DELETE FROM "Rent Roll"`, ErrUnsafeQuery},
		{"stacked", `SELECT 1 FROM "Rent Roll"; DROP TABLE "Rent Roll"`, ErrUnsafeQuery},
		{"pragma in select", `SELECT * FROM pragma_table_info('x') JOIN "Rent Roll"`, nil},
		{"other table", `SELECT * FROM sqlite_master`, ErrWrongTable},
		{"keyword in column", `SELECT "Create Date" FROM "Rent Roll"`, nil},
		{"replace function", `SELECT replace("Tenant", 'A', 'a') FROM "Rent Roll"`, nil},
		{"semicolon in literal", `SELECT "Rent" FROM "Rent Roll" WHERE "Tenant" = 'a;b'`, nil},
		{"stacked after comment", "SELECT 1 FROM \"Rent Roll\" -- note;\n; DELETE FROM \"Rent Roll\"", ErrUnsafeQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockLLM{sql: tt.sql}
			e, err := BuildRelationalQueryEngine(dataset(t), m, config.Reports{})
			require.NoError(t, err)
			_, err = e.Query(context.Background(), "q")
			if tt.want == nil {
				assert.False(t, errors.Is(err, ErrUnsafeQuery) || errors.Is(err, ErrWrongTable))
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, m.requests, 1, "rejected sql must not be explained")
		})
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name  string
		table string
		sql   string
		want  error
	}{
		{"keyword in table name", "Lease Update Report", `SELECT SUM("Rent") FROM "Lease Update Report"`, nil},
		{"quoted semicolon", "Rent Roll", `SELECT "Tenant" FROM "Rent Roll" WHERE "Tenant" = 'a;b'`, nil},
		{"escaped quote", "Rent Roll", `SELECT "Tenant" FROM "Rent Roll" WHERE "Tenant" = 'O''Brien; Co'`, nil},
		{"semicolon in identifier", "Rent;Roll", `SELECT * FROM "Rent;Roll"`, nil},
		{"block comment", "Rent Roll", `SELECT /* total; */ SUM("Rent") FROM "Rent Roll"`, nil},
		{"cte", "Rent Roll", `WITH t AS (SELECT "Rent" FROM "Rent Roll") SELECT MAX("Rent") FROM t`, nil},
		{"two statements", "Rent Roll", `SELECT 1 FROM "Rent Roll"; SELECT 2`, ErrUnsafeQuery},
		{"not a select", "Rent Roll", `UPDATE "Rent Roll" SET "Rent" = 0`, ErrUnsafeQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{ds: &reports.Dataset{Table: tt.table}}
			err := e.guard(tt.sql)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuery_KeywordsInLiteralsAndNames(t *testing.T) {
	m := &mockLLM{sql: `SELECT "Create Date" FROM "Rent Roll" WHERE replace("Tenant", ';', '') = 'Acme' OR "Tenant" = 'x;y'`}
	e, err := BuildRelationalQueryEngine(dataset(t), m, config.Reports{})
	require.NoError(t, err)

	_, err = e.Query(context.Background(), "when was Acme created?")
	require.NoError(t, err)
	require.Len(t, m.requests, 2)
	assert.Contains(t, m.requests[1].User, "2024-01-01")
}

func TestQuery_WritesRefusedByConnection(t *testing.T) {
	ds := dataset(t)
	m := &mockLLM{sql: `WITH t AS (SELECT 1) DELETE FROM "Rent Roll"`}
	e, err := BuildRelationalQueryEngine(ds, m, config.Reports{})
	require.NoError(t, err)

	_, err = e.Query(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsafeQuery))

	var n int
	require.NoError(t, ds.DB.QueryRow(`SELECT COUNT(*) FROM "Rent Roll"`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestQuery_ModelFailure(t *testing.T) {
	e, err := BuildRelationalQueryEngine(dataset(t), &mockLLM{err: errors.New("quota")}, config.Reports{})
	require.NoError(t, err)
	_, err = e.Query(context.Background(), "q")
	var mce *docModel.ModelCallError
	assert.ErrorAs(t, err, &mce)
}

func TestBuildRelationalQueryEngine_NoDataset(t *testing.T) {
	_, err := BuildRelationalQueryEngine(nil, &mockLLM{}, config.Reports{})
	assert.Error(t, err)
}

func TestCleanSQL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"SELECT 1;", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"SQLQuery: SELECT 1\nSQLResult: 1", "SELECT 1"},
		{"  ```sqlite SELECT a FROM t; ```  ", "SELECT a FROM t"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanSQL(tt.in), tt.in)
	}
}
