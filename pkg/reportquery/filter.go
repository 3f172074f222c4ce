package reportquery

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// paramCursor numbers positional placeholders. It is threaded explicitly
// through filter compilation so parameter ordering is visible in one place
// rather than hidden in shared state.
type paramCursor struct {
	next int
}

func newParamCursor() *paramCursor {
	return &paramCursor{next: 1}
}

// placeholder returns the next $n placeholder and advances the cursor.
func (c *paramCursor) placeholder() string {
	p := fmt.Sprintf("$%d", c.next)
	c.next++
	return p
}

// compileFilter turns one filter clause into a SQL fragment plus the bound
// parameters it consumes. Identifier or value-shape problems are reported as
// field errors at the given path; when any are returned the fragment is
// empty and the cursor is left unadvanced for that filter.
func (b *Builder) compileFilter(f FilterSpec, path string, cursor *paramCursor) (string, []any, []FieldError) {
	var errs []FieldError

	quotedTable, err := ValidateIdentifier(f.Table)
	if err != nil {
		errs = append(errs, FieldError{Path: path + ".table", Message: err.Error()})
	}
	quotedColumn, err := ValidateIdentifier(f.Column)
	if err != nil {
		errs = append(errs, FieldError{Path: path + ".column", Message: err.Error()})
	}

	op := b.registry.ResolveOperator(f.Operator)

	switch op.Kind {
	case KindNull:
		if f.Value != nil {
			// The audited behavior: IS [NOT] NULL ignores any supplied value.
			b.logger.Debug("discarding value supplied with null-test operator",
				zap.String("path", path),
				zap.String("operator", op.SQL))
		}
		if len(errs) > 0 {
			return "", nil, errs
		}
		return fmt.Sprintf("%s.%s %s", quotedTable, quotedColumn, op.SQL), nil, nil

	case KindMulti:
		values, verr := filterValueList(f.Value)
		if verr != nil {
			errs = append(errs, FieldError{Path: path + ".value", Message: verr.Error()})
		}
		if len(errs) > 0 {
			return "", nil, errs
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = cursor.placeholder()
		}
		fragment := fmt.Sprintf("%s.%s IN (%s)",
			quotedTable, quotedColumn, strings.Join(placeholders, ", "))
		return fragment, values, nil

	default:
		if f.Value == nil {
			errs = append(errs, FieldError{
				Path:    path + ".value",
				Message: fmt.Sprintf("operator %s requires a value", op.SQL),
			})
		} else if isCompositeValue(f.Value) {
			errs = append(errs, FieldError{
				Path:    path + ".value",
				Message: fmt.Sprintf("operator %s requires a scalar value", op.SQL),
			})
		}
		if len(errs) > 0 {
			return "", nil, errs
		}
		fragment := fmt.Sprintf("%s.%s %s %s",
			quotedTable, quotedColumn, op.SQL, cursor.placeholder())
		return fragment, []any{f.Value}, nil
	}
}

// filterValueList coerces an IN filter's value into a non-empty slice of
// scalar elements.
func filterValueList(value any) ([]any, error) {
	if value == nil {
		return nil, fmt.Errorf("operator IN requires a non-empty array")
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("operator IN requires an array, got %T", value)
	}
	if v.Len() == 0 {
		return nil, fmt.Errorf("operator IN requires a non-empty array")
	}
	values := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i).Interface()
		if isCompositeValue(elem) {
			return nil, fmt.Errorf("IN array elements must be scalar")
		}
		values[i] = elem
	}
	return values, nil
}

// isCompositeValue reports whether v is a slice, array or map - shapes that
// are never valid as a single bound scalar.
func isCompositeValue(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	default:
		return false
	}
}
