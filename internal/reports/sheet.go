package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
)

func readFirstSheet(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, &docModel.FormatError{Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, &docModel.FormatError{Path: path, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, &docModel.FormatError{Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil, nil, &docModel.FormatError{Path: path, Err: errors.New("first sheet is empty")}
	}
	return columnNames(rows[0]), rows[1:], nil
}

// columnNames fills blank headers and makes duplicates unique.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	seen := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[strings.ToLower(name)]; n > 0 {
			seen[strings.ToLower(name)]++
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[strings.ToLower(name)] = 1
		}
		names[i] = name
	}
	return names
}

// materialize writes header and rows into a fresh SQLite file at dbPath and
// reopens it read-only.
func materialize(ctx context.Context, dbPath, table string, header []string, rows [][]string) (*sql.DB, []Column, error) {
	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i := len(header); i < width; i++ {
		header = append(header, fmt.Sprintf("column_%d", i+1))
	}

	columns := make([]Column, width)
	for i := range columns {
		columns[i] = Column{Name: header[i], Type: inferType(rows, i)}
	}

	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open report db: %w", err)
	}
	if err := load(ctx, db, table, columns, rows); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := db.Close(); err != nil {
		return nil, nil, err
	}

	ro, err := sql.Open("sqlite", dbPath+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, nil, fmt.Errorf("reopen report db: %w", err)
	}
	return ro, columns, nil
}

func load(ctx context.Context, db *sql.DB, table string, columns []Column, rows [][]string) error {
	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = QuoteIdent(c.Name) + " " + c.Type
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdent(table), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			var cell string
			if i < len(r) {
				cell = r[i]
			}
			args[i] = convert(cell, c.Type)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

// inferType picks INTEGER or REAL when every non-blank cell parses as one.
func inferType(rows [][]string, col int) string {
	isInt, isReal, nonBlank := true, true, false
	for _, r := range rows {
		if col >= len(r) {
			continue
		}
		v := strings.TrimSpace(r[col])
		if v == "" {
			continue
		}
		nonBlank = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isReal = false
		}
	}
	switch {
	case !nonBlank:
		return "TEXT"
	case isInt:
		return "INTEGER"
	case isReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func convert(cell, typ string) any {
	v := strings.TrimSpace(cell)
	if v == "" {
		return nil
	}
	switch typ {
	case "INTEGER":
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case "REAL":
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return cell
	}
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
