package unified

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/virodata/poxbase/internal/domain"
)

// PlanColumn is one output column of a model's flattened representation.
type PlanColumn struct {
	Path string
	Kind domain.FieldKind
}

// SelectPlan fixes the flattened output shape of one model: root fields plus
// the scalar fields of every eager-loaded relation, in declaration order. The
// key set is identical for every instance of the model; nested keys are null
// when the relation is absent.
type SelectPlan struct {
	Model   string
	Columns []PlanColumn
}

// Plan returns the (cached) select plan for one model.
func (e *Engine) Plan(model string) (*SelectPlan, error) {
	desc, err := e.registry.Resolve(model)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	plan, ok := e.plans[desc.Name]
	e.mu.RUnlock()
	if ok {
		return plan, nil
	}

	plan = &SelectPlan{Model: desc.Name}
	for _, field := range desc.Fields {
		plan.Columns = append(plan.Columns, PlanColumn{Path: field.Name, Kind: field.Kind})
	}
	for _, relPath := range desc.EagerLoad {
		target, err := e.registry.RelationTarget(desc, relPath)
		if err != nil {
			return nil, err
		}
		for _, field := range target.Fields {
			plan.Columns = append(plan.Columns, PlanColumn{
				Path: relPath + "." + field.Name,
				Kind: field.Kind,
			})
		}
	}

	e.mu.Lock()
	e.plans[desc.Name] = plan
	e.mu.Unlock()
	return plan, nil
}

// Paths returns the plan's column paths in order.
func (p *SelectPlan) Paths() []string {
	paths := make([]string, len(p.Columns))
	for i, col := range p.Columns {
		paths[i] = col.Path
	}
	return paths
}

// Render flattens one row of scanned values into a field-path keyed mapping.
// Values must be in plan column order.
func (p *SelectPlan) Render(values []any) (map[string]any, error) {
	if len(values) != len(p.Columns) {
		return nil, fmt.Errorf("row has %d values, plan expects %d", len(values), len(p.Columns))
	}
	record := make(map[string]any, len(p.Columns))
	for i, col := range p.Columns {
		record[col.Path] = renderValue(col.Kind, values[i])
	}
	return record, nil
}

func renderValue(kind domain.FieldKind, value any) any {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		if kind == domain.FieldKindDate {
			return v.Format("2006-01-02")
		}
		return v.UTC().Format(time.RFC3339)
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	default:
		return v
	}
}

// FormatCSV renders one flattened value as a CSV cell.
func FormatCSV(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
