package pdfops

import "fmt"

// ValidationError reports tool options that cannot be applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DocumentError wraps a failure reported by the PDF library for a given operation.
type DocumentError struct {
	Op  string
	Err error
}

func (e *DocumentError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *DocumentError) Unwrap() error { return e.Err }

func docErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DocumentError{Op: op, Err: err}
}

// FormatError reports an input whose content type a tool cannot read.
type FormatError struct {
	MIME string
}

func (e *FormatError) Error() string { return fmt.Sprintf("unsupported content type %q", e.MIME) }
