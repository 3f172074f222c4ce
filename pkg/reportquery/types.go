// Package reportquery compiles caller-supplied report configurations into
// parameterized SQL statements. Configurations are validated into a verified
// plan before any SQL text is produced; only verified plans have a render
// path, so unvalidated input can never reach the statement text. All literal
// values travel in the parameter vector, never in the SQL string.
package reportquery

// ReportConfig is the caller-supplied structural description of an ad-hoc
// report query. It is owned by the request handler for the lifetime of one
// call; the builder never retains references to it after compilation.
type ReportConfig struct {
	Tables  []TableRef   `json:"tables" validate:"required,min=1"`
	Columns []ColumnSpec `json:"columns" validate:"required,min=1"`
	Joins   []JoinSpec   `json:"joins,omitempty"`
	Filters []FilterSpec `json:"filters,omitempty"`
	GroupBy []ColumnRef  `json:"group_by,omitempty"`
	OrderBy []OrderSpec  `json:"order_by,omitempty"`
	Limit   *int         `json:"limit,omitempty"`
}

// TableRef names a table to query.
type TableRef struct {
	Name string `json:"name"`
}

// ColumnSpec describes one projected column, optionally aggregated and aliased.
type ColumnSpec struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	Aggregate string `json:"aggregate,omitempty"`
	Alias     string `json:"alias,omitempty"`
}

// JoinSpec describes one join clause. Condition must match the fixed pattern
// "table.column <op> table.column" with <op> one of =, <, >, <=, >=.
type JoinSpec struct {
	Type      string `json:"type,omitempty"`
	Table     string `json:"table"`
	Condition string `json:"condition,omitempty"`
}

// FilterSpec describes one WHERE predicate. Value is a scalar for comparison
// operators, an array for IN, and absent for IS NULL / IS NOT NULL.
type FilterSpec struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// ColumnRef names a column for GROUP BY. Table is optional; when present it
// must be one of the config's tables or join targets.
type ColumnRef struct {
	Table  string `json:"table,omitempty"`
	Column string `json:"column"`
}

// OrderSpec names a column for ORDER BY. Direction defaults to ASC on
// invalid or absent input.
type OrderSpec struct {
	Table     string `json:"table,omitempty"`
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

// CompiledStatement is the output of a successful compile: the SQL text with
// positional placeholders and the parameter vector in placeholder order.
// It is built once per request and never mutated after construction.
type CompiledStatement struct {
	SQL    string
	Params []any
}
