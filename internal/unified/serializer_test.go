package unified

import (
	"testing"
	"time"

	"github.com/virodata/poxbase/internal/domain"
)

func TestPlanColumnsRootThenEagerLoads(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	plan, err := engine.Plan("descriptive")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	paths := plan.Paths()
	if paths[0] != "id" {
		t.Fatalf("expected id first, got %s", paths[0])
	}

	sawNested := false
	for _, p := range paths {
		nested := false
		for _, c := range p {
			if c == '.' {
				nested = true
			}
		}
		if nested {
			sawNested = true
		} else if sawNested {
			t.Fatalf("root column %s after nested columns", p)
		}
	}
	if !sawNested {
		t.Fatal("expected full_text.* columns in plan")
	}
}

func TestPlanDeepEagerLoad(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	plan, err := engine.Plan("pathogen")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	found := false
	for _, col := range plan.Columns {
		if col.Path == "host.study.full_text.title" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected host.study.full_text.title in pathogen plan")
	}
}

func TestRenderStableKeysAndNulls(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	plan, err := engine.Plan("descriptive")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	// A row whose relation is absent: all nested values nil.
	values := make([]any, len(plan.Columns))
	values[0] = int64(7)
	record, err := plan.Render(values)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if len(record) != len(plan.Columns) {
		t.Fatalf("expected %d keys, got %d", len(plan.Columns), len(record))
	}
	for _, col := range plan.Columns {
		if _, ok := record[col.Path]; !ok {
			t.Fatalf("missing key %s", col.Path)
		}
	}
	if record["id"] != int64(7) {
		t.Fatalf("unexpected id value %v", record["id"])
	}
	if record["full_text.title"] != nil {
		t.Fatalf("absent relation should render nil, got %v", record["full_text.title"])
	}
}

func TestRenderLengthMismatch(t *testing.T) {
	engine := NewEngine(domain.DefaultRegistry())
	plan, err := engine.Plan("fulltext")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if _, err := plan.Render([]any{1, 2}); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestRenderValueFormats(t *testing.T) {
	date := time.Date(2022, 5, 9, 13, 30, 0, 0, time.UTC)

	if got := renderValue(domain.FieldKindDate, date); got != "2022-05-09" {
		t.Fatalf("date render = %v", got)
	}
	if got := renderValue(domain.FieldKindText, date); got != "2022-05-09T13:30:00Z" {
		t.Fatalf("timestamp render = %v", got)
	}
	if got := renderValue(domain.FieldKindText, []byte("abc")); got != "abc" {
		t.Fatalf("bytes render = %v", got)
	}
	if got := renderValue(domain.FieldKindNumber, nil); got != nil {
		t.Fatalf("nil render = %v", got)
	}
}

func TestFormatCSV(t *testing.T) {
	if got := FormatCSV(nil); got != "" {
		t.Fatalf("nil cell = %q", got)
	}
	if got := FormatCSV(true); got != "true" {
		t.Fatalf("bool cell = %q", got)
	}
	if got := FormatCSV(int64(42)); got != "42" {
		t.Fatalf("int cell = %q", got)
	}
	if got := FormatCSV("plain"); got != "plain" {
		t.Fatalf("string cell = %q", got)
	}
}
