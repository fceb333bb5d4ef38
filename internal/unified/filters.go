package unified

import (
	"github.com/virodata/poxbase/internal/domain"
)

// Filters returns the filter definitions surfaced to clients for one model.
// The cap bounds this surfaced list only; query matching covers every derived
// filter. Root fields enumerate before nested ones, so shallow fields are
// favored by construction.
func (e *Engine) Filters(model string) ([]domain.FilterDefinition, error) {
	return e.filterDefinitions(model, e.maxFilters)
}

// filterDefinitions derives filter definitions exhaustively up to the relation
// depth bound. A positive limit keeps the enumeration-order prefix.
func (e *Engine) filterDefinitions(model string, limit int) ([]domain.FilterDefinition, error) {
	fields, err := e.registry.Enumerate(model)
	if err != nil {
		return nil, err
	}

	var definitions []domain.FilterDefinition
	for fd := range fields {
		definitions = append(definitions, domain.FilterDefinition{
			Name:     fd.Path,
			Label:    fd.Label,
			Type:     fd.Kind,
			Operator: domain.OperatorForKind(fd.Kind),
		})
		if limit > 0 && len(definitions) == limit {
			break
		}
	}
	return definitions, nil
}

// Columns returns every known field path for one model, for UI column toggles.
// The set matches the keys of flattened records.
func (e *Engine) Columns(model string) ([]domain.FieldDescriptor, error) {
	plan, err := e.Plan(model)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FieldDescriptor, len(plan.Columns))
	for i, col := range plan.Columns {
		out[i] = domain.FieldDescriptor{
			Path:  col.Path,
			Label: domain.LabelForPath(col.Path),
			Kind:  col.Kind,
		}
	}
	return out, nil
}
