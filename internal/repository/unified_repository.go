package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virodata/poxbase/internal/domain"
	"github.com/virodata/poxbase/internal/unified"
)

// unifiedRepository translates record queries into SQL over the record tables,
// joining eager-loaded relations with LEFT JOINs so absent relations still
// yield a row.
type unifiedRepository struct {
	pool     *pgxpool.Pool
	registry *domain.Registry
}

// NewUnifiedRepository creates the query executor for the unified engine.
func NewUnifiedRepository(pool *pgxpool.Pool, registry *domain.Registry) UnifiedRepository {
	return &unifiedRepository{pool: pool, registry: registry}
}

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// joinContext tracks table aliases for relation paths and accumulates the
// LEFT JOIN clauses needed by the select list, filters and ordering.
type joinContext struct {
	registry *domain.Registry
	root     *domain.ModelDescriptor
	aliases  map[string]string
	models   map[string]*domain.ModelDescriptor
	joins    []string
}

func newJoinContext(registry *domain.Registry, root *domain.ModelDescriptor) *joinContext {
	return &joinContext{
		registry: registry,
		root:     root,
		aliases:  map[string]string{"": "t"},
		models:   map[string]*domain.ModelDescriptor{"": root},
	}
}

func (c *joinContext) ensureJoin(relPath string) (string, error) {
	if alias, ok := c.aliases[relPath]; ok {
		return alias, nil
	}

	parentPath := ""
	relName := relPath
	if idx := strings.LastIndex(relPath, "."); idx >= 0 {
		parentPath = relPath[:idx]
		relName = relPath[idx+1:]
	}

	parentAlias, err := c.ensureJoin(parentPath)
	if err != nil {
		return "", err
	}
	parent := c.models[parentPath]

	var relation *domain.Relation
	for i := range parent.Relations {
		if parent.Relations[i].Name == relName {
			relation = &parent.Relations[i]
			break
		}
	}
	if relation == nil {
		return "", fmt.Errorf("unknown relation path %q on model %s", relPath, c.root.Name)
	}

	target, err := c.registry.Resolve(relation.Target)
	if err != nil {
		return "", err
	}

	alias := fmt.Sprintf("j%d", len(c.joins))
	c.joins = append(c.joins, fmt.Sprintf(
		"LEFT JOIN %s %s ON %s.id = %s.%s",
		target.Table, alias, alias, parentAlias, relation.FKColumn,
	))
	c.aliases[relPath] = alias
	c.models[relPath] = target
	return alias, nil
}

func (c *joinContext) columnExpr(fieldPath string) (string, error) {
	relPath := ""
	fieldName := fieldPath
	if idx := strings.LastIndex(fieldPath, "."); idx >= 0 {
		relPath = fieldPath[:idx]
		fieldName = fieldPath[idx+1:]
	}

	alias, err := c.ensureJoin(relPath)
	if err != nil {
		return "", err
	}
	model := c.models[relPath]
	for _, field := range model.Fields {
		if field.Name == fieldName {
			return alias + "." + field.Column, nil
		}
	}
	return "", fmt.Errorf("unknown field path %q on model %s", fieldPath, c.root.Name)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List runs the narrowed query and returns raw rows in plan column order plus
// the total matching count before pagination.
func (r *unifiedRepository) List(
	ctx context.Context,
	plan *unified.SelectPlan,
	query domain.RecordQuery,
	limit int,
	offset int,
) ([][]any, int, error) {
	root, err := r.registry.Resolve(plan.Model)
	if err != nil {
		return nil, 0, err
	}

	joinCtx := newJoinContext(r.registry, root)
	builder := &sqlBuilder{}

	selectExprs := make([]string, 0, len(plan.Columns)+1)
	for _, col := range plan.Columns {
		expr, err := joinCtx.columnExpr(col.Path)
		if err != nil {
			return nil, 0, err
		}
		selectExprs = append(selectExprs, expr)
	}
	selectExprs = append(selectExprs, "COUNT(*) OVER() AS total_count")

	var conditions []string
	for _, pred := range query.Predicates {
		expr, err := joinCtx.columnExpr(pred.Path)
		if err != nil {
			return nil, 0, err
		}
		switch pred.Op {
		case domain.PredicateContains:
			idx := builder.addArg("%" + likeEscaper.Replace(fmt.Sprintf("%v", pred.Value)) + "%")
			conditions = append(conditions, fmt.Sprintf("%s ILIKE %s", expr, builder.placeholder(idx)))
		case domain.PredicateGTE:
			idx := builder.addArg(pred.Value)
			conditions = append(conditions, fmt.Sprintf("%s >= %s", expr, builder.placeholder(idx)))
		case domain.PredicateLTE:
			idx := builder.addArg(pred.Value)
			conditions = append(conditions, fmt.Sprintf("%s <= %s", expr, builder.placeholder(idx)))
		case domain.PredicateExact:
			idx := builder.addArg(pred.Value)
			conditions = append(conditions, fmt.Sprintf("%s = %s", expr, builder.placeholder(idx)))
		default:
			return nil, 0, fmt.Errorf("unsupported predicate operator %q", pred.Op)
		}
	}

	if query.SearchTerm != "" && len(query.SearchPaths) > 0 {
		idx := builder.addArg("%" + likeEscaper.Replace(query.SearchTerm) + "%")
		var alternatives []string
		for _, path := range query.SearchPaths {
			expr, err := joinCtx.columnExpr(path)
			if err != nil {
				return nil, 0, err
			}
			alternatives = append(alternatives, fmt.Sprintf("%s ILIKE %s", expr, builder.placeholder(idx)))
		}
		conditions = append(conditions, "("+strings.Join(alternatives, " OR ")+")")
	}

	orderExprs := make([]string, 0, len(query.Order)+1)
	for _, key := range query.Order {
		expr, err := joinCtx.columnExpr(key.Path)
		if err != nil {
			return nil, 0, err
		}
		direction := "ASC"
		if key.Desc {
			direction = "DESC"
		}
		orderExprs = append(orderExprs, fmt.Sprintf("%s %s NULLS LAST", expr, direction))
	}
	orderExprs = append(orderExprs, "t.id ASC")

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectExprs, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(root.Table)
	sb.WriteString(" t")
	for _, join := range joinCtx.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(orderExprs, ", "))

	limitIdx := builder.addArg(limit)
	offsetIdx := builder.addArg(offset)
	sb.WriteString(fmt.Sprintf(" LIMIT %s OFFSET %s", builder.placeholder(limitIdx), builder.placeholder(offsetIdx)))

	rows, err := r.pool.Query(ctx, sb.String(), builder.args...)
	if err != nil {
		return nil, 0, &domain.QueryExecutionError{Err: err}
	}
	defer rows.Close()

	var records [][]any
	total := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, 0, &domain.QueryExecutionError{Err: err}
		}
		if count, ok := values[len(values)-1].(int64); ok {
			total = int(count)
		}
		records = append(records, values[:len(values)-1])
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &domain.QueryExecutionError{Err: err}
	}

	return records, total, nil
}
