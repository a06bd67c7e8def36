package bankcsv

import (
	"errors"
	"fmt"
)

// Import error codes carried in row-level errors.
const (
	ErrCodeInvalidEncoding = "ERR_IMPORT_INVALID_ENCODING"
	ErrCodeMissingHeader   = "ERR_IMPORT_MISSING_HEADER"
	ErrCodeMalformedRow    = "ERR_IMPORT_MALFORMED_ROW"
	ErrCodeRequiredField   = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeInvalidAmount   = "ERR_IMPORT_INVALID_AMOUNT"
	ErrCodeInvalidDate     = "ERR_IMPORT_INVALID_DATE"
	ErrCodeInvalidIBAN     = "ERR_IMPORT_INVALID_IBAN"
)

var (
	// ErrEmptyFile is returned when the statement file is empty
	ErrEmptyFile = errors.New("statement file is empty")

	// ErrInvalidEncoding is returned when the file is not valid UTF-8
	ErrInvalidEncoding = errors.New("statement file is not valid UTF-8")

	// ErrMissingHeader is returned when the file has no header row
	ErrMissingHeader = errors.New("statement file missing header row")

	// ErrUnknownColumns is returned when no statement columns can be
	// recognized in the header row
	ErrUnknownColumns = errors.New("no recognizable statement columns in header row")
)

// RowError describes why a single statement line was rejected. Rows are
// numbered as in the file, header included, so row 2 is the first data row.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{Row: row, Column: column, Code: code, Message: message}
}

// WithValue attaches the offending raw value
func (e RowError) WithValue(value string) RowError {
	e.Value = value
	return e
}
