package reportquery

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxRowLimit is the hard ceiling on a report's LIMIT clause.
// Caller-supplied limits above it are clamped, never rejected: clamping can
// only shrink a result set, unlike dropping a filter.
const DefaultMaxRowLimit = 10000

// Builder compiles a ReportConfig into a CompiledStatement. It is stateless
// across requests and safe for concurrent use.
type Builder struct {
	registry    *Registry
	maxRowLimit int
	logger      *zap.Logger
}

// NewBuilder creates a plan builder. maxRowLimit values <= 0 fall back to
// DefaultMaxRowLimit.
func NewBuilder(registry *Registry, maxRowLimit int, logger *zap.Logger) *Builder {
	if maxRowLimit <= 0 {
		maxRowLimit = DefaultMaxRowLimit
	}
	return &Builder{
		registry:    registry,
		maxRowLimit: maxRowLimit,
		logger:      logger,
	}
}

// verifiedPlan holds the fully validated, quoted pieces of a statement.
// Only a verifiedPlan can be rendered; nothing reaches render() without
// passing every identifier and shape check first.
type verifiedPlan struct {
	selectList []string
	fromList   []string
	joins      []string
	where      []string
	groupBy    []string
	orderBy    []string
	limit      int // 0 means no LIMIT clause
	params     []any
}

// Build validates cfg and compiles it into a parameterized statement.
// Validation is fail-closed and aggregated: every offending field across the
// whole config is collected into a single *ValidationErrors, and no SQL text
// is produced unless the entire config is valid. Compiling the same config
// twice yields byte-identical SQL and parameter ordering.
func (b *Builder) Build(cfg ReportConfig) (*CompiledStatement, error) {
	verrs := &ValidationErrors{}
	plan := &verifiedPlan{}

	// Tables referenced anywhere must be declared here or joined below.
	known := make(map[string]bool, len(cfg.Tables)+len(cfg.Joins))

	if len(cfg.Tables) == 0 {
		verrs.add("tables", "at least one table is required")
	}
	for i, t := range cfg.Tables {
		quoted, err := ValidateIdentifier(t.Name)
		if err != nil {
			verrs.add(fmt.Sprintf("tables[%d].name", i), "%s", err.Error())
			continue
		}
		known[t.Name] = true
		plan.fromList = append(plan.fromList, quoted)
	}
	for i, j := range cfg.Joins {
		if _, err := ValidateIdentifier(j.Table); err == nil {
			known[j.Table] = true
		} else {
			verrs.add(fmt.Sprintf("joins[%d].table", i), "%s", err.Error())
		}
	}

	b.buildSelect(cfg, known, plan, verrs)

	for i, j := range cfg.Joins {
		fragment, errs := b.compileJoin(j, fmt.Sprintf("joins[%d]", i), known)
		if len(errs) > 0 {
			verrs.Errors = append(verrs.Errors, dedupePaths(errs, verrs)...)
			continue
		}
		plan.joins = append(plan.joins, fragment)
	}

	cursor := newParamCursor()
	for i, f := range cfg.Filters {
		path := fmt.Sprintf("filters[%d]", i)
		if f.Table != "" && !known[f.Table] && identifierPattern.MatchString(f.Table) {
			verrs.add(path+".table", "table %q is not part of this report", f.Table)
		}
		fragment, params, errs := b.compileFilter(f, path, cursor)
		if len(errs) > 0 {
			verrs.Errors = append(verrs.Errors, errs...)
			continue
		}
		plan.where = append(plan.where, fragment)
		plan.params = append(plan.params, params...)
	}

	b.buildGroupBy(cfg, known, plan, verrs)
	b.buildOrderBy(cfg, known, plan, verrs)

	if cfg.Limit != nil {
		limit := *cfg.Limit
		switch {
		case limit <= 0:
			verrs.add("limit", "limit must be a positive integer")
		case limit > b.maxRowLimit:
			b.logger.Debug("clamping report limit to ceiling",
				zap.Int("requested", limit),
				zap.Int("ceiling", b.maxRowLimit))
			plan.limit = b.maxRowLimit
		default:
			plan.limit = limit
		}
	}

	if !verrs.empty() {
		return nil, verrs
	}
	return plan.render(), nil
}

// buildSelect validates every projected column and assembles the SELECT
// list. Duplicate output keys (two columns sharing a bare name or alias) are
// a validation error rather than being left for the driver to resolve.
func (b *Builder) buildSelect(cfg ReportConfig, known map[string]bool, plan *verifiedPlan, verrs *ValidationErrors) {
	if len(cfg.Columns) == 0 {
		verrs.add("columns", "at least one column is required")
		return
	}

	outputKeys := make(map[string]int, len(cfg.Columns))
	for i, c := range cfg.Columns {
		path := fmt.Sprintf("columns[%d]", i)

		quotedTable, terr := ValidateIdentifier(c.Table)
		if terr != nil {
			verrs.add(path+".table", "%s", terr.Error())
		} else if !known[c.Table] {
			verrs.add(path+".table", "table %q is not part of this report", c.Table)
		}
		quotedColumn, cerr := ValidateIdentifier(c.Column)
		if cerr != nil {
			verrs.add(path+".column", "%s", cerr.Error())
		}

		outputKey := c.Column
		if c.Alias != "" {
			if _, aerr := ValidateIdentifier(c.Alias); aerr != nil {
				verrs.add(path+".alias", "%s", aerr.Error())
				continue
			}
			outputKey = c.Alias
		}
		if prev, dup := outputKeys[outputKey]; dup {
			verrs.add(path, "output name %q collides with columns[%d]; supply a distinct alias", outputKey, prev)
			continue
		}
		outputKeys[outputKey] = i

		if terr != nil || cerr != nil {
			continue
		}

		expr := quotedTable + "." + quotedColumn
		agg, hasAgg := b.registry.ResolveAggregate(c.Aggregate)
		if hasAgg {
			expr = agg + "(" + expr + ")"
		}
		if c.Alias != "" {
			expr += " AS " + mustQuote(c.Alias)
		} else if hasAgg {
			// Keep the output key stable; otherwise the engine would name
			// the column after the aggregate function.
			expr += " AS " + mustQuote(c.Column)
		}
		plan.selectList = append(plan.selectList, expr)
	}
}

func (b *Builder) buildGroupBy(cfg ReportConfig, known map[string]bool, plan *verifiedPlan, verrs *ValidationErrors) {
	for i, g := range cfg.GroupBy {
		path := fmt.Sprintf("group_by[%d]", i)
		quotedColumn, err := ValidateIdentifier(g.Column)
		if err != nil {
			verrs.add(path+".column", "%s", err.Error())
			continue
		}
		if g.Table == "" {
			plan.groupBy = append(plan.groupBy, quotedColumn)
			continue
		}
		quotedTable, terr := ValidateIdentifier(g.Table)
		if terr != nil {
			verrs.add(path+".table", "%s", terr.Error())
			continue
		}
		if !known[g.Table] {
			verrs.add(path+".table", "table %q is not part of this report", g.Table)
			continue
		}
		plan.groupBy = append(plan.groupBy, quotedTable+"."+quotedColumn)
	}
}

func (b *Builder) buildOrderBy(cfg ReportConfig, known map[string]bool, plan *verifiedPlan, verrs *ValidationErrors) {
	for i, o := range cfg.OrderBy {
		path := fmt.Sprintf("order_by[%d]", i)
		quotedColumn, err := ValidateIdentifier(o.Column)
		if err != nil {
			verrs.add(path+".column", "%s", err.Error())
			continue
		}

		expr := quotedColumn
		if o.Table != "" {
			quotedTable, terr := ValidateIdentifier(o.Table)
			if terr != nil {
				verrs.add(path+".table", "%s", terr.Error())
				continue
			}
			if !known[o.Table] {
				verrs.add(path+".table", "table %q is not part of this report", o.Table)
				continue
			}
			expr = quotedTable + "." + quotedColumn
		}

		direction := "ASC"
		if normalizeToken(o.Direction) == "DESC" {
			direction = "DESC"
		}
		plan.orderBy = append(plan.orderBy, expr+" "+direction)
	}
}

// render assembles the final statement from verified pieces only.
func (p *verifiedPlan) render() *CompiledStatement {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(p.selectList, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(p.fromList, ", "))
	for _, j := range p.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(p.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(p.where, " AND "))
	}
	if len(p.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(p.groupBy, ", "))
	}
	if len(p.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(p.orderBy, ", "))
	}
	if p.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", p.limit)
	}

	return &CompiledStatement{
		SQL:    sb.String(),
		Params: p.params,
	}
}

// dedupePaths drops errors whose path was already reported, so a join table
// flagged in the declaration pass is not reported twice by compileJoin.
func dedupePaths(errs []FieldError, existing *ValidationErrors) []FieldError {
	seen := make(map[string]bool, len(existing.Errors))
	for _, e := range existing.Errors {
		seen[e.Path] = true
	}
	var out []FieldError
	for _, e := range errs {
		if !seen[e.Path] {
			out = append(out, e)
		}
	}
	return out
}
