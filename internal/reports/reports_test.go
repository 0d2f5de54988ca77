package reports

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/akolanti/DocsetAgent/internal/catalog"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
)

type mockStore struct {
	projects  []docModel.Project
	listErr   error
	artifacts []catalog.Artifact
	artErr    error
	content   []byte
	dlErr     error
	downloads int
}

func (m *mockStore) ListProjects(ctx context.Context, docsetID string) ([]docModel.Project, error) {
	return m.projects, m.listErr
}

func (m *mockStore) LatestArtifacts(ctx context.Context, projectURL, name string) ([]catalog.Artifact, error) {
	return m.artifacts, m.artErr
}

func (m *mockStore) DownloadArtifact(ctx context.Context, projectURL, artifactID string, w io.Writer) error {
	m.downloads++
	if m.dlErr != nil {
		return m.dlErr
	}
	_, err := w.Write(m.content)
	return err
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Tenant", "Rent", "Area", ""},
		{"Acme", 1200, 10.5, "x"},
		{"Beta", 800, 20, ""},
		{"Gamma", 1500, 7.25, "y"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func project() docModel.Project {
	return docModel.Project{ID: "p1", Name: "Rent Roll", URL: "https://api.example/projects/p1", DocsetID: "ds1"}
}

func TestGetRelationalDataset(t *testing.T) {
	store := &mockStore{
		projects:  []docModel.Project{project()},
		artifacts: []catalog.Artifact{{ID: "a0", Name: "report.csv"}, {ID: "a1", Name: "Spreadsheet.XLSX"}},
		content:   workbook(t),
	}
	dir := t.TempDir()
	a := NewAdapter(store, config.Reports{Directory: dir})

	ds, err := a.GetRelationalDataset(context.Background(), "ds1", docModel.Create)
	require.NoError(t, err)
	require.NotNil(t, ds)
	defer ds.Close()

	assert.Equal(t, "Rent Roll", ds.Table)
	assert.Equal(t, filepath.Join(dir, "p1.xlsx"), ds.Report.LocalPath)
	assert.Equal(t, []Column{
		{Name: "Tenant", Type: "TEXT"},
		{Name: "Rent", Type: "INTEGER"},
		{Name: "Area", Type: "REAL"},
		{Name: "column_4", Type: "TEXT"},
	}, ds.Columns)

	var total int64
	require.NoError(t, ds.DB.QueryRow(`SELECT SUM("Rent") FROM "Rent Roll"`).Scan(&total))
	assert.Equal(t, int64(3500), total)

	_, err = ds.DB.Exec(`DELETE FROM "Rent Roll"`)
	assert.Error(t, err, "report db must be read-only")
}

func TestGetRelationalDataset_CacheReuse(t *testing.T) {
	store := &mockStore{
		projects:  []docModel.Project{project()},
		artifacts: []catalog.Artifact{{ID: "a1", Name: "spreadsheet.xlsx"}},
		content:   workbook(t),
	}
	a := NewAdapter(store, config.Reports{Directory: t.TempDir()})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ds, err := a.GetRelationalDataset(ctx, "ds1", docModel.Create)
		require.NoError(t, err)
		ds.Close()
	}
	assert.Equal(t, 1, store.downloads)

	ds, err := a.GetRelationalDataset(ctx, "ds1", docModel.Recreate)
	require.NoError(t, err)
	ds.Close()
	assert.Equal(t, 2, store.downloads)
}

func TestGetRelationalDataset_RebuildKeepsPreviousHandle(t *testing.T) {
	store := &mockStore{
		projects:  []docModel.Project{project()},
		artifacts: []catalog.Artifact{{ID: "a1", Name: "spreadsheet.xlsx"}},
		content:   workbook(t),
	}
	a := NewAdapter(store, config.Reports{Directory: t.TempDir()})
	ctx := context.Background()

	first, err := a.GetRelationalDataset(ctx, "ds1", docModel.Create)
	require.NoError(t, err)
	second, err := a.GetRelationalDataset(ctx, "ds1", docModel.Recreate)
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.path, second.path)

	//a fresh connection on the old pool still sees the complete table
	conn, err := first.DB.Conn(ctx)
	require.NoError(t, err)
	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM "Rent Roll"`).Scan(&n))
	assert.Equal(t, 3, n)
	require.NoError(t, conn.Close())

	require.NoError(t, first.Close())
	_, statErr := os.Stat(first.path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "closing a dataset removes its file")
	_, statErr = os.Stat(second.path)
	assert.NoError(t, statErr)
}

func TestGetRelationalDataset_CorruptCacheIsDownloadedAgain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.xlsx"), []byte("truncated"), 0o644))
	store := &mockStore{
		projects:  []docModel.Project{project()},
		artifacts: []catalog.Artifact{{ID: "a1", Name: "spreadsheet.xlsx"}},
		content:   workbook(t),
	}
	a := NewAdapter(store, config.Reports{Directory: dir})

	ds, err := a.GetRelationalDataset(context.Background(), "ds1", docModel.Create)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, 1, store.downloads)
	var total int64
	require.NoError(t, ds.DB.QueryRow(`SELECT SUM("Rent") FROM "Rent Roll"`).Scan(&total))
	assert.Equal(t, int64(3500), total)
}

func TestGetRelationalDataset_NoDataset(t *testing.T) {
	tests := []struct {
		name  string
		store *mockStore
	}{
		{"no xlsx in listing", &mockStore{projects: []docModel.Project{project()}, artifacts: []catalog.Artifact{{ID: "a", Name: "notes.pdf"}}}},
		{"empty listing", &mockStore{projects: []docModel.Project{project()}}},
		{"never published", &mockStore{projects: []docModel.Project{project()}, artErr: &docModel.NotFoundError{Kind: "artifact listing"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.store, config.Reports{Directory: t.TempDir()})
			ds, err := a.GetRelationalDataset(context.Background(), "ds1", docModel.Create)
			assert.NoError(t, err)
			assert.Nil(t, ds)
			assert.Zero(t, tt.store.downloads)
		})
	}
}

func TestGetRelationalDataset_Errors(t *testing.T) {
	t.Run("no project", func(t *testing.T) {
		a := NewAdapter(&mockStore{}, config.Reports{Directory: t.TempDir()})
		_, err := a.GetRelationalDataset(context.Background(), "ds1", docModel.Create)
		var nf *docModel.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("content download fails", func(t *testing.T) {
		dir := t.TempDir()
		store := &mockStore{
			projects:  []docModel.Project{project()},
			artifacts: []catalog.Artifact{{ID: "a1", Name: "spreadsheet.xlsx"}},
			dlErr:     &docModel.DownloadError{URL: "x", StatusCode: 500},
		}
		a := NewAdapter(store, config.Reports{Directory: dir})
		_, err := a.GetRelationalDataset(context.Background(), "ds1", docModel.Create)
		var de *docModel.DownloadError
		assert.ErrorAs(t, err, &de)
		_, statErr := os.Stat(filepath.Join(dir, "p1.xlsx"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "failed download must not leave a cached file")
	})

	t.Run("not a workbook", func(t *testing.T) {
		store := &mockStore{
			projects:  []docModel.Project{project()},
			artifacts: []catalog.Artifact{{ID: "a1", Name: "spreadsheet.xlsx"}},
			content:   []byte("definitely not a zip"),
		}
		dir := t.TempDir()
		a := NewAdapter(store, config.Reports{Directory: dir})
		_, err := a.GetRelationalDataset(context.Background(), "ds1", docModel.Create)
		var fe *docModel.FormatError
		assert.ErrorAs(t, err, &fe)
		_, statErr := os.Stat(filepath.Join(dir, "p1.xlsx"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "unreadable workbook must not stay cached")
	})
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"Name", "column_2", "name_2", "Total"}, columnNames([]string{"Name", " ", "name", "Total"}))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a ""b"""`, QuoteIdent(`a "b"`))
}
