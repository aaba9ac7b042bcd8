package store

import "fmt"

// ValidationError rejects an operation whose input is missing a required
// field. Nothing is written when it is returned.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// MalformedRecordError means a stored row lacks cells every well-formed
// record has. Writes always set the required columns, so this indicates
// storage corruption or schema drift rather than a normal miss. It carries
// the offending row key so the row can be found and inspected.
type MalformedRecordError struct {
	Key   string
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("row %q is missing or has an unreadable %q column", e.Key, e.Field)
}
