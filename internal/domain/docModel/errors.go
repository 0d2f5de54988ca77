package docModel

import (
	"fmt"
	"time"
)

// NotFoundError means a docset, project or artifact does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// FormatError means fetched content could not be parsed.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type BudgetExceededError struct {
	Iterations int
	Timeout    time.Duration
	Err        error
}

func (e *BudgetExceededError) Error() string {
	if e.Iterations > 0 {
		return fmt.Sprintf("agent exceeded its budget of %d iterations", e.Iterations)
	}
	return fmt.Sprintf("agent exceeded its timeout of %s", e.Timeout)
}

func (e *BudgetExceededError) Unwrap() error { return e.Err }

// ModelCallError wraps a failure returned by the language model service.
type ModelCallError struct {
	DocID string
	Model string
	Err   error
}

func (e *ModelCallError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("model %s failed for %s: %v", e.Model, e.DocID, e.Err)
	}
	return fmt.Sprintf("model %s failed: %v", e.Model, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }
