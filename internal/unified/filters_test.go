package unified

import (
	"testing"

	"github.com/virodata/poxbase/internal/domain"
)

func TestFiltersCapKeepsEnumerationPrefix(t *testing.T) {
	registry := domain.DefaultRegistry()
	small := NewEngine(registry, WithMaxFilters(3))
	large := NewEngine(registry, WithMaxFilters(10))

	smallFilters, err := small.Filters("pathogen")
	if err != nil {
		t.Fatalf("filters failed: %v", err)
	}
	largeFilters, err := large.Filters("pathogen")
	if err != nil {
		t.Fatalf("filters failed: %v", err)
	}

	if len(smallFilters) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(smallFilters))
	}
	if len(largeFilters) != 10 {
		t.Fatalf("expected 10 filters, got %d", len(largeFilters))
	}
	for i, f := range smallFilters {
		if f.Name != largeFilters[i].Name {
			t.Fatalf("cap changed filter order at %d: %s vs %s", i, f.Name, largeFilters[i].Name)
		}
	}
}

func TestFiltersOperatorsMatchKinds(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry(), WithMaxFilters(50))
	filters, err := engine.Filters("fulltext")
	if err != nil {
		t.Fatalf("filters failed: %v", err)
	}

	byName := map[string]domain.FilterDefinition{}
	for _, f := range filters {
		byName[f.Name] = f
	}

	cases := map[string]domain.FilterOperator{
		"title":            domain.FilterOperatorContains,
		"publication_year": domain.FilterOperatorRange,
		"processed":        domain.FilterOperatorExact,
	}
	for name, want := range cases {
		f, ok := byName[name]
		if !ok {
			t.Fatalf("filter %s not surfaced", name)
		}
		if f.Operator != want {
			t.Errorf("filter %s: operator %s, want %s", name, f.Operator, want)
		}
	}
}

func TestFiltersDefaultCapIsEight(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	filters, err := engine.Filters("host")
	if err != nil {
		t.Fatalf("filters failed: %v", err)
	}
	if len(filters) != DefaultMaxFilters {
		t.Fatalf("expected %d filters, got %d", DefaultMaxFilters, len(filters))
	}
}

func TestColumnsMatchPlanPaths(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	columns, err := engine.Columns("descriptive")
	if err != nil {
		t.Fatalf("columns failed: %v", err)
	}
	plan, err := engine.Plan("descriptive")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(columns) != len(plan.Columns) {
		t.Fatalf("columns %d != plan columns %d", len(columns), len(plan.Columns))
	}
	for i, col := range columns {
		if col.Path != plan.Columns[i].Path {
			t.Fatalf("column %d: %s != plan %s", i, col.Path, plan.Columns[i].Path)
		}
	}
}

func TestFiltersUnknownModel(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	if _, err := engine.Filters("virus"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}
