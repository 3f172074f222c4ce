package reportquery

import (
	"strings"

	"go.uber.org/zap"
)

// OperatorKind describes how an operator binds its value.
type OperatorKind int

const (
	// KindComparison takes exactly one scalar value via one placeholder.
	KindComparison OperatorKind = iota
	// KindMulti takes a non-empty array via one placeholder per element.
	KindMulti
	// KindNull takes no value and emits no placeholder.
	KindNull
)

// Operator is a whitelisted filter operator with its rendering behavior.
type Operator struct {
	SQL  string
	Kind OperatorKind
}

// operators is the closed set of filter operators. Anything outside this map
// resolves to the "=" fallback.
var operators = map[string]Operator{
	"=":           {SQL: "=", Kind: KindComparison},
	"!=":          {SQL: "!=", Kind: KindComparison},
	"<>":          {SQL: "!=", Kind: KindComparison},
	"<":           {SQL: "<", Kind: KindComparison},
	">":           {SQL: ">", Kind: KindComparison},
	"<=":          {SQL: "<=", Kind: KindComparison},
	">=":          {SQL: ">=", Kind: KindComparison},
	"LIKE":        {SQL: "LIKE", Kind: KindComparison},
	"ILIKE":       {SQL: "ILIKE", Kind: KindComparison},
	"IN":          {SQL: "IN", Kind: KindMulti},
	"IS NULL":     {SQL: "IS NULL", Kind: KindNull},
	"IS NOT NULL": {SQL: "IS NOT NULL", Kind: KindNull},
}

// aggregates is the closed set of aggregate functions for projected columns.
var aggregates = map[string]string{
	"COUNT": "COUNT",
	"SUM":   "SUM",
	"AVG":   "AVG",
	"MIN":   "MIN",
	"MAX":   "MAX",
}

// joinTypes is the closed set of join types. Invalid input defaults to INNER.
var joinTypes = map[string]string{
	"INNER": "INNER",
	"LEFT":  "LEFT",
	"RIGHT": "RIGHT",
	"FULL":  "FULL",
	"CROSS": "CROSS",
}

// Registry resolves raw operator, aggregate and join-type tokens against
// their whitelists. Lookups are case-insensitive and whitespace-tolerant.
type Registry struct {
	logger *zap.Logger
}

// NewRegistry creates a registry. Fallback resolutions are logged as policy
// decisions through the given logger, never silently absorbed.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// normalizeToken uppercases and collapses interior whitespace so that
// "is  not  null" and "IS NOT NULL" resolve identically.
func normalizeToken(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}

// ResolveOperator maps a raw operator string to a whitelisted operator.
// Unknown input maps to "=" rather than failing the request; the fallback is
// a deliberate policy carried over from the audited behavior and is logged.
func (r *Registry) ResolveOperator(raw string) Operator {
	if op, ok := operators[normalizeToken(raw)]; ok {
		return op
	}
	r.logger.Warn("unknown filter operator, falling back to equality",
		zap.String("operator", raw))
	return operators["="]
}

// ResolveAggregate maps a raw aggregate name to a whitelisted function.
// Returns ("", false) for absent or unknown input, meaning no aggregation.
func (r *Registry) ResolveAggregate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if agg, ok := aggregates[normalizeToken(raw)]; ok {
		return agg, true
	}
	r.logger.Warn("unknown aggregate function, projecting bare column",
		zap.String("aggregate", raw))
	return "", false
}

// ResolveJoinType maps a raw join type to a whitelisted type, defaulting to
// INNER for absent or invalid input. The default is logged.
func (r *Registry) ResolveJoinType(raw string) string {
	if raw == "" {
		return "INNER"
	}
	if jt, ok := joinTypes[normalizeToken(raw)]; ok {
		return jt
	}
	r.logger.Warn("unknown join type, defaulting to INNER",
		zap.String("type", raw))
	return "INNER"
}
