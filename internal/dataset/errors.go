package dataset

import (
	"fmt"
	"strings"
)

// InvalidConfigError reports a configuration that cannot be saved.
type InvalidConfigError struct {
	// Columns lists role values that name no column.
	Columns []string
	Reason  string
	Err     error
}

func (e *InvalidConfigError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("invalid config: unknown columns: %s", strings.Join(e.Columns, ", "))
	}
	return "invalid config: " + e.Reason
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// EmptyDatasetError reports an upload without data rows.
type EmptyDatasetError struct {
	FileName string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("%s contains no data rows", e.FileName)
}

// ForbiddenError reports an identity acting on a record it does not own.
type ForbiddenError struct {
	Kind string
	ID   string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to access %s %q", e.Kind, e.ID)
}
