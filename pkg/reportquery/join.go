package reportquery

import (
	"fmt"
	"regexp"
)

// joinConditionPattern is the only accepted shape for a join predicate:
// identifier.identifier <op> identifier.identifier. Join conditions sit in
// the FROM clause where values cannot be parameterized, so anything that
// does not match exactly is rejected outright.
var joinConditionPattern = regexp.MustCompile(
	`^\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*(<=|>=|=|<|>)\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*$`)

// JoinConditionRefs extracts the two table.column references from a join
// condition. ok is false when the condition does not match the accepted
// pattern.
func JoinConditionRefs(condition string) ([2]ColumnRef, bool) {
	m := joinConditionPattern.FindStringSubmatch(condition)
	if m == nil {
		return [2]ColumnRef{}, false
	}
	return [2]ColumnRef{
		{Table: m[1], Column: m[2]},
		{Table: m[4], Column: m[5]},
	}, true
}

// compileJoin validates and renders one join clause. The captured condition
// tokens are re-validated and re-quoted individually, and both sides must
// name a table declared in the report; matching the pattern alone is not
// treated as proof of safety.
func (b *Builder) compileJoin(j JoinSpec, path string, known map[string]bool) (string, []FieldError) {
	var errs []FieldError

	joinType := b.registry.ResolveJoinType(j.Type)

	quotedTable, err := ValidateIdentifier(j.Table)
	if err != nil {
		errs = append(errs, FieldError{Path: path + ".table", Message: err.Error()})
	}

	if joinType == "CROSS" {
		if j.Condition != "" {
			errs = append(errs, FieldError{
				Path:    path + ".condition",
				Message: "CROSS joins do not take a condition",
			})
		}
		if len(errs) > 0 {
			return "", errs
		}
		return fmt.Sprintf("CROSS JOIN %s", quotedTable), nil
	}

	m := joinConditionPattern.FindStringSubmatch(j.Condition)
	if m == nil {
		errs = append(errs, FieldError{
			Path:    path + ".condition",
			Message: fmt.Sprintf("invalid join condition %q: must match table.column <op> table.column", j.Condition),
		})
		return "", errs
	}

	leftTable, lerr := ValidateIdentifier(m[1])
	leftColumn, lcerr := ValidateIdentifier(m[2])
	op := m[3]
	rightTable, rerr := ValidateIdentifier(m[4])
	rightColumn, rcerr := ValidateIdentifier(m[5])
	for _, err := range []error{lerr, lcerr, rerr, rcerr} {
		if err != nil {
			errs = append(errs, FieldError{Path: path + ".condition", Message: err.Error()})
		}
	}

	condTables := []string{m[1], m[4]}
	if m[1] == m[4] {
		condTables = condTables[:1]
	}
	for _, name := range condTables {
		if !known[name] {
			errs = append(errs, FieldError{
				Path:    path + ".condition",
				Message: fmt.Sprintf("table %q is not part of this report", name),
			})
		}
	}
	if len(errs) > 0 {
		return "", errs
	}

	return fmt.Sprintf("%s JOIN %s ON %s.%s %s %s.%s",
		joinType, quotedTable,
		leftTable, leftColumn, op, rightTable, rightColumn), nil
}
