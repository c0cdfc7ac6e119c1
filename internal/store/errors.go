package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a cell's version no longer matches
	// the version the caller read. The caller has to re-fetch and decide
	// again; the store never retries.
	ErrVersionConflict = errors.New("version conflict: the cell has been modified by another user")

	// ErrOccupiedCell is returned when a structural change would remove an
	// occupied cell.
	ErrOccupiedCell = errors.New("cell is occupied")

	// ErrAlreadyOpen is returned when a cell already has an open occupancy record.
	ErrAlreadyOpen = errors.New("cell already has an open occupancy record")

	// ErrNoOpenRecord is returned when closing a cell that has no open record.
	ErrNoOpenRecord = errors.New("cell has no open occupancy record")

	// ErrProfessorNameTaken is returned when another professor already uses the name.
	ErrProfessorNameTaken = errors.New("a professor with the same name already exists")

	// ErrProfessorInUse is returned when deleting a professor that still occupies cells.
	ErrProfessorInUse = errors.New("professor still occupies cells")
)

// OccupiedCellsError lists the occupied cells that blocked a deletion.
type OccupiedCellsError struct {
	Positions []string
}

func (e *OccupiedCellsError) Error() string {
	return fmt.Sprintf("%v: %s", ErrOccupiedCell, strings.Join(e.Positions, ", "))
}

func (e *OccupiedCellsError) Unwrap() error {
	return ErrOccupiedCell
}
