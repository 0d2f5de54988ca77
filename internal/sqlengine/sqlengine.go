// Package sqlengine answers natural language questions over a report table
// by generating SQL, running it and explaining the result.
package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/prompts"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/reports"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const dialect = "SQLite"

var (
	ErrUnsafeQuery = errors.New("generated query is not a single read-only statement")
	ErrWrongTable  = errors.New("generated query does not use the report table")

	fence = regexp.MustCompile("(?s)```(?:sqlite|sql)?\\s*(.*?)```")
)

type Engine struct {
	ds      *reports.Dataset
	model   llm.Provider
	maxRows int
	schema  string
	logger  *logger_i.Logger
}

// BuildRelationalQueryEngine restricts generation to the dataset's single table.
func BuildRelationalQueryEngine(ds *reports.Dataset, model llm.Provider, cfg config.Reports) (*Engine, error) {
	if ds == nil || ds.DB == nil {
		return nil, errors.New("sqlengine: no dataset")
	}
	if model == nil {
		return nil, errors.New("sqlengine: no model")
	}
	maxRows := cfg.MaxResultRows
	if maxRows <= 0 {
		maxRows = 50
	}
	return &Engine{
		ds:      ds,
		model:   model,
		maxRows: maxRows,
		schema:  describe(ds),
		logger:  logger_i.NewLogger("sql engine").With("table", ds.Table),
	}, nil
}

func (e *Engine) Table() string { return e.ds.Table }

// Query returns an answer that states how the numbers were computed.
func (e *Engine) Query(ctx context.Context, question string) (string, error) {
	logger := e.logger.WithTrace(ctx)

	query, err := e.generate(ctx, question)
	if err != nil {
		return "", err
	}
	logger.Debug("Generated SQL", "sql", query)

	result, err := e.execute(ctx, query)
	if err != nil {
		return "", err
	}

	prompt, err := prompts.ExplainedQuery.Render(prompts.ExplainedQueryParams{Question: question, SQL: query, Result: result})
	if err != nil {
		return "", err
	}
	answer, err := e.model.Complete(ctx, llm.Request{
		System:      prompts.ExplainedQuerySystem,
		User:        prompt,
		Temperature: config.SummaryTemperature,
	})
	if err != nil {
		return "", &docModel.ModelCallError{Model: e.model.Model(), Err: err}
	}
	return strings.TrimSpace(answer), nil
}

func (e *Engine) generate(ctx context.Context, question string) (string, error) {
	prompt, err := prompts.SQLGen.Render(prompts.SQLGenParams{
		Dialect:  dialect,
		Table:    e.ds.Table,
		Schema:   e.schema,
		Question: question,
	})
	if err != nil {
		return "", err
	}
	raw, err := e.model.Complete(ctx, llm.Request{
		System:      prompts.SQLGenSystem,
		User:        prompt,
		Temperature: config.SQLGenTemperature,
	})
	if err != nil {
		return "", &docModel.ModelCallError{Model: e.model.Model(), Err: err}
	}
	query := CleanSQL(raw)
	if err := e.guard(query); err != nil {
		e.logger.Warn("Rejected generated SQL", "sql", query, "error", err)
		return "", err
	}
	return query, nil
}

// CleanSQL strips markdown fences, a leading "SQLQuery:" label and the
// trailing semicolon from model output.
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if i := strings.Index(strings.ToLower(s), "sqlquery:"); i >= 0 {
		s = strings.TrimSpace(s[i+len("sqlquery:"):])
	}
	if i := strings.Index(s, "SQLResult:"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(strings.TrimRight(s, "; \n\t"))
}

// guard only checks the shape of the query. Writes are refused by the
// dataset's query_only connection, not here.
func (e *Engine) guard(query string) error {
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return ErrUnsafeQuery
	}
	if statementCount(query) != 1 {
		return ErrUnsafeQuery
	}
	if !strings.Contains(lower, strings.ToLower(e.ds.Table)) {
		return ErrWrongTable
	}
	return nil
}

// statementCount counts the non-empty statements separated by semicolons
// outside of literals, quoted identifiers and comments.
func statementCount(query string) int {
	count := 0
	pending := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := c
			if c == '[' {
				end = ']'
			}
			//doubled quotes are escapes and simply reopen the literal
			for i++; i < len(query) && query[i] != end; i++ {
			}
			pending = true
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			if j := strings.Index(query[i+2:], "*/"); j >= 0 {
				i += j + 3
			} else {
				i = len(query)
			}
		case c == ';':
			if pending {
				count++
			}
			pending = false
		case c != ' ' && c != '\t' && c != '\n' && c != '\r':
			pending = true
		}
	}
	if pending {
		count++
	}
	return count
}

// execute runs query and renders at most maxRows rows as a pipe separated table.
func (e *Engine) execute(ctx context.Context, query string) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("sql_query", time.Since(start)) }()

	rows, err := e.ds.DB.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("run generated sql: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))
	sb.WriteString("\n")

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	n := 0
	for rows.Next() {
		if n == e.maxRows {
			sb.WriteString(fmt.Sprintf("... truncated after %d rows\n", e.maxRows))
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = format(v)
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString("\n")
		n++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if n == 0 {
		sb.WriteString("(no rows)\n")
	}
	return sb.String(), nil
}

func format(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func describe(ds *reports.Dataset) string {
	lines := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		lines = append(lines, fmt.Sprintf("%s %s", reports.QuoteIdent(c.Name), c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", reports.QuoteIdent(ds.Table), strings.Join(lines, ",\n  "))
}
