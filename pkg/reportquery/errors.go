package reportquery

import (
	"fmt"
	"strings"
)

// FieldError describes one validation failure, naming the offending field by
// its path in the report config (e.g. "filters[2].column").
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors aggregates every validation failure found across a whole
// report config. Compilation is fail-closed: one ValidationErrors result is
// returned per request listing all offending paths, and no SQL is produced.
type ValidationErrors struct {
	Errors []FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// add appends a field error at the given path.
func (e *ValidationErrors) add(path, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// empty reports whether no errors were collected.
func (e *ValidationErrors) empty() bool {
	return len(e.Errors) == 0
}
