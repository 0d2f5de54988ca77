// Package reports turns the latest spreadsheet published for a docset's
// project into a single-table SQLite dataset.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akolanti/DocsetAgent/internal/catalog"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/data/keylock"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const spreadsheetArtifact = "spreadsheet.xlsx"

type ArtifactStore interface {
	ListProjects(ctx context.Context, docsetID string) ([]docModel.Project, error)
	LatestArtifacts(ctx context.Context, projectURL, name string) ([]catalog.Artifact, error)
	DownloadArtifact(ctx context.Context, projectURL, artifactID string, w io.Writer) error
}

type Column struct {
	Name string
	Type string
}

// Dataset is a read-only handle over the materialized report table.
type Dataset struct {
	DB      *sql.DB
	Table   string
	Columns []Column
	Report  docModel.ReportDetails

	path string
}

// Close closes the handle and removes the SQLite file behind it.
func (d *Dataset) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	err := d.DB.Close()
	if d.path != "" {
		if rmErr := os.Remove(d.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

type Adapter struct {
	store  ArtifactStore
	dir    string
	locks  *keylock.Locks
	logger *logger_i.Logger
}

func NewAdapter(store ArtifactStore, cfg config.Reports) *Adapter {
	return &Adapter{
		store:  store,
		dir:    cfg.Directory,
		locks:  keylock.New(),
		logger: logger_i.NewLogger("reports"),
	}
}

// GetRelationalDataset returns (nil, nil) when the docset's project has never
// published a spreadsheet. With Create an already cached workbook is reused;
// Recreate always downloads it again.
func (a *Adapter) GetRelationalDataset(ctx context.Context, docsetID string, mode docModel.IndexMode) (*Dataset, error) {
	logger := a.logger.WithTrace(ctx).With("docsetId", docsetID)

	projects, err := a.store.ListProjects(ctx, docsetID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		return nil, &docModel.NotFoundError{Kind: "project for docset", ID: docsetID}
	}
	project := projects[0]

	unlock := a.locks.Lock(project.ID)
	defer unlock()

	xlsxPath := filepath.Join(a.dir, project.ID+".xlsx")
	_, statErr := os.Stat(xlsxPath)
	cached := mode == docModel.Create && statErr == nil
	if cached {
		logger.Debug("Reusing cached report", "path", xlsxPath)
	} else if found, err := a.download(ctx, project, xlsxPath); err != nil {
		return nil, err
	} else if !found {
		logger.Info("No spreadsheet published for project", "projectId", project.ID)
		return nil, nil
	}

	table := project.Name
	if table == "" {
		table = xlsxPath
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("report_materialize", time.Since(start)) }()

	header, rows, err := readFirstSheet(xlsxPath)
	var formatErr *docModel.FormatError
	if errors.As(err, &formatErr) {
		if rmErr := os.Remove(xlsxPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("Failed to remove unreadable report", "path", xlsxPath, "error", rmErr)
		}
		if !cached {
			return nil, err
		}
		logger.Warn("Cached report is unreadable, downloading it again", "error", err)
		found, dlErr := a.download(ctx, project, xlsxPath)
		if dlErr != nil {
			return nil, dlErr
		}
		if !found {
			return nil, nil
		}
		header, rows, err = readFirstSheet(xlsxPath)
		if errors.As(err, &formatErr) {
			_ = os.Remove(xlsxPath)
		}
	}
	if err != nil {
		return nil, err
	}

	// every build gets its own file, runtimes still answering from the
	// previous one keep reading it until they close it
	dbPath := filepath.Join(a.dir, project.ID+"-"+uuid.NewString()+".sqlite")
	db, columns, err := materialize(ctx, dbPath, table, header, rows)
	if err != nil {
		_ = os.Remove(dbPath)
		return nil, err
	}
	logger.Info("Report ready", "table", table, "rows", len(rows), "columns", len(columns))

	return &Dataset{
		DB:      db,
		Table:   table,
		Columns: columns,
		Report: docModel.ReportDetails{
			ID:        project.ID,
			Name:      project.Name,
			URL:       project.URL,
			LocalPath: xlsxPath,
			Table:     table,
		},
		path: dbPath,
	}, nil
}

// download fetches the latest xlsx artifact into path. found is false when
// the project has no published spreadsheet.
func (a *Adapter) download(ctx context.Context, project docModel.Project, path string) (bool, error) {
	artifacts, err := a.store.LatestArtifacts(ctx, project.URL, spreadsheetArtifact)
	var nf *docModel.NotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var artifact *catalog.Artifact
	for i := range artifacts {
		if strings.HasSuffix(strings.ToLower(artifacts[i].Name), ".xlsx") {
			artifact = &artifacts[i]
			break
		}
	}
	if artifact == nil {
		return false, nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return false, fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(a.dir, project.ID+"-*.xlsx.part")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	if err := a.store.DownloadArtifact(ctx, project.URL, artifact.ID, tmp); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("store report: %w", err)
	}
	return true, nil
}
