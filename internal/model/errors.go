package model

import (
	"fmt"
	"strings"
)

// PreconditionError reports a violated study-design precondition. It is
// fatal for the batch.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition violated: " + e.Reason
}

// ClassificationError reports that the treated reference point was not
// contained by exactly one cell.
type ClassificationError struct {
	Matches []int
}

func (e *ClassificationError) Error() string {
	if len(e.Matches) == 0 {
		return "classification: treated point lies in no cell"
	}
	ids := make([]string, len(e.Matches))
	for i, id := range e.Matches {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("classification: treated point lies in %d cells (%s)",
		len(e.Matches), strings.Join(ids, ", "))
}

// Unwrap lets errors.As match a ClassificationError as a PreconditionError.
func (e *ClassificationError) Unwrap() error {
	return &PreconditionError{Reason: "treated unit is not unique"}
}

// InconsistencyError reports a panel cell that is missing from the grid.
type InconsistencyError struct {
	CellID int
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("panel: cell %d is not in the classified grid", e.CellID)
}

// InputError reports a malformed input record. Record locates it (a line
// number, an edge id, a field name).
type InputError struct {
	Record string
	Err    error
}

func (e *InputError) Error() string {
	if e.Record == "" {
		return "invalid input: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid input %s: %s", e.Record, e.Err.Error())
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError wraps err as an InputError for record.
func NewInputError(record string, err error) *InputError {
	return &InputError{Record: record, Err: err}
}
