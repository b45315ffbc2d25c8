package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// IncompleteRowError reports a required column that is missing or falsy.
type IncompleteRowError struct {
	RowNumber int
	Column    string
}

func (e *IncompleteRowError) Error() string {
	return fmt.Sprintf("row %d is incomplete: %q is required", e.RowNumber, e.Column)
}

func (e *IncompleteRowError) Kind() string { return "IncompleteRowError" }

// InvalidFieldFormatError reports a value that breaks a format rule, a
// date that cannot be read or a non-numeric value in a numeric column.
type InvalidFieldFormatError struct {
	RowNumber int
	Column    string
	Message   string
}

func (e *InvalidFieldFormatError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "invalid format"
	}
	return fmt.Sprintf("row %d, column %q: %s", e.RowNumber, e.Column, msg)
}

func (e *InvalidFieldFormatError) Kind() string { return "InvalidFieldFormatError" }

// DuplicateRowsInBatchError rejects an upload containing repeated rows.
type DuplicateRowsInBatchError struct {
	RowNumbers []int
}

func (e *DuplicateRowsInBatchError) Error() string {
	nums := make([]string, len(e.RowNumbers))
	for i, n := range e.RowNumbers {
		nums[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("duplicate rows in upload: %s", strings.Join(nums, ", "))
}

func (e *DuplicateRowsInBatchError) Kind() string { return "DuplicateRowsInBatchError" }

// CommitError reports the insert that stopped a batch. Rows committed
// before it stay committed and are listed in the accompanying Result.
type CommitError struct {
	RowNumber int
	Committed int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit stopped at row %d after %d committed rows: %v", e.RowNumber, e.Committed, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
func (e *CommitError) Kind() string  { return "StoreError" }
