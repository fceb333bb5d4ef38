package unified

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/virodata/poxbase/internal/domain"
)

const (
	paramSearch   = "search"
	paramOrdering = "ordering"
	paramModel    = "model"
	paramPage     = "page"
	paramPageSize = "page_size"

	rangeFromSuffix = "_from"
	rangeToSuffix   = "_to"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// BuildQuery translates raw request parameters into a typed record query for
// the named model. Parameters are matched against the full derived filter set,
// not the capped list surfaced to clients. Keys that match no filter are
// ignored. Values that fail to parse for their declared type are reported in
// dropped; the offending filter is skipped and the remaining filters still
// apply.
func (e *Engine) BuildQuery(model string, params url.Values) (domain.RecordQuery, []*domain.InvalidFilterValueError, error) {
	filters, err := e.filterDefinitions(model, 0)
	if err != nil {
		return domain.RecordQuery{}, nil, err
	}

	var query domain.RecordQuery
	var dropped []*domain.InvalidFilterValueError

	for _, filter := range filters {
		switch filter.Operator {
		case domain.FilterOperatorRange:
			for _, bound := range []struct {
				suffix string
				op     domain.PredicateOp
			}{
				{rangeFromSuffix, domain.PredicateGTE},
				{rangeToSuffix, domain.PredicateLTE},
			} {
				raw := strings.TrimSpace(params.Get(filter.Name + bound.suffix))
				if raw == "" {
					continue
				}
				value, parseErr := parseRangeValue(filter.Type, raw)
				if parseErr != nil {
					dropped = append(dropped, &domain.InvalidFilterValueError{
						Key:    filter.Name + bound.suffix,
						Value:  raw,
						Reason: parseErr.Error(),
					})
					continue
				}
				query.Predicates = append(query.Predicates, domain.Predicate{
					Path:  filter.Name,
					Op:    bound.op,
					Value: value,
				})
			}
		case domain.FilterOperatorExact:
			raw := strings.TrimSpace(params.Get(filter.Name))
			if raw == "" {
				continue
			}
			value, ok := parseBool(raw)
			if !ok {
				dropped = append(dropped, &domain.InvalidFilterValueError{
					Key:    filter.Name,
					Value:  raw,
					Reason: "not a recognized boolean literal",
				})
				continue
			}
			query.Predicates = append(query.Predicates, domain.Predicate{
				Path:  filter.Name,
				Op:    domain.PredicateExact,
				Value: value,
			})
		default:
			raw := params.Get(filter.Name)
			if raw == "" {
				continue
			}
			query.Predicates = append(query.Predicates, domain.Predicate{
				Path:  filter.Name,
				Op:    domain.PredicateContains,
				Value: raw,
			})
		}
	}

	if term := strings.TrimSpace(params.Get(paramSearch)); term != "" {
		paths, err := e.searchPaths(model)
		if err != nil {
			return domain.RecordQuery{}, nil, err
		}
		query.SearchTerm = term
		query.SearchPaths = paths
	}

	query.Order = e.parseOrdering(model, params.Get(paramOrdering))

	return query, dropped, nil
}

// parseOrdering accepts comma-separated field paths, "-" prefixed for
// descending. Paths not present in the model's output plan are skipped.
func (e *Engine) parseOrdering(model, raw string) []domain.SortKey {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	plan, err := e.Plan(model)
	if err != nil {
		return nil
	}
	known := make(map[string]bool, len(plan.Columns))
	for _, col := range plan.Columns {
		known[col.Path] = true
	}

	var keys []domain.SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(strings.TrimPrefix(part, "-"), "+")
		if !known[part] {
			continue
		}
		keys = append(keys, domain.SortKey{Path: part, Desc: desc})
	}
	return keys
}

func parseRangeValue(kind domain.FieldKind, raw string) (any, error) {
	switch kind {
	case domain.FieldKindNumber:
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number")
		}
		return value, nil
	case domain.FieldKindDate:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("not a recognized date")
	default:
		return nil, fmt.Errorf("field does not support range bounds")
	}
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}
