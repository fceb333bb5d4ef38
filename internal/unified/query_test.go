package unified

import (
	"net/url"
	"testing"
	"time"

	"github.com/virodata/poxbase/internal/domain"
)

func TestBuildQueryTextFilter(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	params := url.Values{"scientific_name": {"Mastomys"}}

	query, dropped, err := engine.BuildQuery("host", params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped filters: %v", dropped)
	}
	if len(query.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(query.Predicates))
	}
	p := query.Predicates[0]
	if p.Path != "scientific_name" || p.Op != domain.PredicateContains || p.Value != "Mastomys" {
		t.Fatalf("unexpected predicate: %+v", p)
	}
}

func TestBuildQueryRangeBounds(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	params := url.Values{
		"individual_count_from": {"5"},
		"individual_count_to":   {"20"},
	}

	query, dropped, err := engine.BuildQuery("host", params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped filters: %v", dropped)
	}
	if len(query.Predicates) != 2 {
		t.Fatalf("expected 2 predicates, got %d", len(query.Predicates))
	}

	ops := map[domain.PredicateOp]float64{}
	for _, p := range query.Predicates {
		ops[p.Op] = p.Value.(float64)
	}
	if ops[domain.PredicateGTE] != 5 || ops[domain.PredicateLTE] != 20 {
		t.Fatalf("unexpected bounds: %v", ops)
	}
}

func TestBuildQueryInvalidValueDroppedOthersApply(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	params := url.Values{
		"individual_count_from": {"many"},
		"country":               {"Nigeria"},
	}

	query, dropped, err := engine.BuildQuery("host", params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dropped) != 1 {
		t.Fatalf("expected 1 dropped filter, got %d", len(dropped))
	}
	if dropped[0].Key != "individual_count_from" || dropped[0].Value != "many" {
		t.Fatalf("unexpected dropped filter: %+v", dropped[0])
	}
	if len(query.Predicates) != 1 || query.Predicates[0].Path != "country" {
		t.Fatalf("remaining filter should still apply, got %+v", query.Predicates)
	}
}

func TestBuildQueryBooleanVocabulary(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())

	cases := []struct {
		raw  string
		want bool
	}{
		{"true", true}, {"Yes", true}, {"1", true},
		{"false", false}, {"NO", false}, {"0", false},
	}
	for _, c := range cases {
		query, dropped, err := engine.BuildQuery("fulltext", url.Values{"processed": {c.raw}})
		if err != nil {
			t.Fatalf("build failed for %q: %v", c.raw, err)
		}
		if len(dropped) != 0 {
			t.Fatalf("value %q should parse, got dropped %v", c.raw, dropped)
		}
		if len(query.Predicates) != 1 || query.Predicates[0].Value != c.want {
			t.Fatalf("value %q: unexpected predicates %+v", c.raw, query.Predicates)
		}
	}

	_, dropped, err := engine.BuildQuery("fulltext", url.Values{"processed": {"maybe"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dropped) != 1 || dropped[0].Key != "processed" {
		t.Fatalf("expected processed=maybe to be dropped, got %v", dropped)
	}
}

func TestBuildQueryDateRange(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	params := url.Values{"assay_date_from": {"2021-03-01"}}

	query, dropped, err := engine.BuildQuery("pathogen", params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped: %v", dropped)
	}
	if len(query.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(query.Predicates))
	}
	ts, ok := query.Predicates[0].Value.(time.Time)
	if !ok || ts.Year() != 2021 || ts.Month() != time.March {
		t.Fatalf("unexpected date value: %v", query.Predicates[0].Value)
	}
}

func TestBuildQueryMatchesFieldsBeyondSurfacedCap(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())

	// processed is the twelfth fulltext field, well past the default cap of 8.
	query, dropped, err := engine.BuildQuery("fulltext", url.Values{"processed": {"true"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped filters: %v", dropped)
	}
	if len(query.Predicates) != 1 || query.Predicates[0].Path != "processed" || query.Predicates[0].Value != true {
		t.Fatalf("uncapped filter should apply, got %+v", query.Predicates)
	}

	// Nested fields never make the surfaced prefix but still filter.
	query, _, err = engine.BuildQuery("host", url.Values{"study.dataset_name": {"survey"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(query.Predicates) != 1 || query.Predicates[0].Path != "study.dataset_name" {
		t.Fatalf("nested filter should apply, got %+v", query.Predicates)
	}

	filters, err := engine.Filters("fulltext")
	if err != nil {
		t.Fatalf("filters failed: %v", err)
	}
	if len(filters) != DefaultMaxFilters {
		t.Fatalf("surfaced list should stay capped at %d, got %d", DefaultMaxFilters, len(filters))
	}
}

func TestBuildQuerySearchUsesRootTextFields(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	query, _, err := engine.BuildQuery("host", url.Values{"search": {"cameroon"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if query.SearchTerm != "cameroon" {
		t.Fatalf("unexpected search term %q", query.SearchTerm)
	}
	if len(query.SearchPaths) == 0 {
		t.Fatal("expected search paths")
	}
	for _, path := range query.SearchPaths {
		for _, c := range path {
			if c == '.' {
				t.Fatalf("search path %s crosses relations at default depth", path)
			}
		}
	}
}

func TestBuildQuerySearchDepthWidens(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry(), WithSearchDepth(1))
	query, _, err := engine.BuildQuery("host", url.Values{"search": {"x"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	nested := false
	for _, path := range query.SearchPaths {
		for _, c := range path {
			if c == '.' {
				nested = true
			}
		}
	}
	if !nested {
		t.Fatal("expected nested search paths at depth 1")
	}
}

func TestBuildQueryUnknownParamsIgnored(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	query, dropped, err := engine.BuildQuery("host", url.Values{"flavour": {"sour"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(query.Predicates) != 0 || len(dropped) != 0 {
		t.Fatalf("unknown param should be ignored: %+v %+v", query.Predicates, dropped)
	}
}

func TestParseOrdering(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())

	keys := engine.parseOrdering("host", "-individual_count, country,bogus")
	if len(keys) != 2 {
		t.Fatalf("expected 2 sort keys, got %d", len(keys))
	}
	if keys[0].Path != "individual_count" || !keys[0].Desc {
		t.Fatalf("unexpected first key: %+v", keys[0])
	}
	if keys[1].Path != "country" || keys[1].Desc {
		t.Fatalf("unexpected second key: %+v", keys[1])
	}
}

func TestParseOrderingNestedPath(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	keys := engine.parseOrdering("host", "study.dataset_name")
	if len(keys) != 1 || keys[0].Path != "study.dataset_name" {
		t.Fatalf("expected nested sort key, got %+v", keys)
	}
}
