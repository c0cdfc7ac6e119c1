// Package grid maps rack coordinates to human-readable position labels.
//
// Rows are lettered A..Z and columns numbered from 1, so the zero-based
// coordinate (1, 2) is "B3".
package grid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MaxRows is bounded by the single-letter row alphabet.
	MaxRows = 26
	// MaxColumns mirrors MaxRows so racks stay square-addressable.
	MaxColumns = 26
)

// ErrOutOfRange is returned for coordinates or dimensions the labeling
// scheme cannot express.
var ErrOutOfRange = errors.New("grid coordinate out of range")

var positionRe = regexp.MustCompile(`^\s*([A-Za-z])\s*(\d{1,3})\s*$`)

// Position returns the label for a zero-based (row, col) coordinate.
func Position(row, col int) (string, error) {
	if row < 0 || row >= MaxRows || col < 0 {
		return "", fmt.Errorf("%w: row %d, column %d", ErrOutOfRange, row, col)
	}
	return RowLabel(row) + strconv.Itoa(col+1), nil
}

// MustPosition is Position for coordinates already known to be valid.
func MustPosition(row, col int) string {
	p, err := Position(row, col)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePosition decodes a label such as "B3" back into (row, col).
func ParsePosition(label string) (int, int, error) {
	m := positionRe.FindStringSubmatch(label)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: malformed position %q", ErrOutOfRange, label)
	}
	row := int(strings.ToUpper(m[1])[0] - 'A')
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("%w: malformed position %q", ErrOutOfRange, label)
	}
	return row, n - 1, nil
}

// RowLabel returns the letter used for a zero-based row index.
func RowLabel(row int) string {
	return string(rune('A' + row))
}

// ColumnLabel returns the 1-based column number as shown to users.
func ColumnLabel(col int) string {
	return strconv.Itoa(col + 1)
}

// InBounds reports whether (row, col) lies inside a rows x columns grid.
func InBounds(row, col, rows, columns int) bool {
	return row >= 0 && col >= 0 && row < rows && col < columns
}

// ValidateDimensions checks that a rack size can be labeled.
func ValidateDimensions(rows, columns int) error {
	if rows < 1 || rows > MaxRows {
		return fmt.Errorf("%w: rows must be between 1 and %d, got %d", ErrOutOfRange, MaxRows, rows)
	}
	if columns < 1 || columns > MaxColumns {
		return fmt.Errorf("%w: columns must be between 1 and %d, got %d", ErrOutOfRange, MaxColumns, columns)
	}
	return nil
}
