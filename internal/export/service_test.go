package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/url"
	"strings"
	"testing"

	"github.com/virodata/poxbase/internal/domain"
	"github.com/virodata/poxbase/internal/unified"
)

type stubLister struct {
	rows  [][]any
	calls int
}

func (s *stubLister) List(_ context.Context, plan *unified.SelectPlan, _ domain.RecordQuery, limit, offset int) ([][]any, int, error) {
	s.calls++
	if offset >= len(s.rows) {
		return nil, len(s.rows), nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], len(s.rows), nil
}

func fullTextRow(t *testing.T, engine *unified.Engine, title, author string) []any {
	t.Helper()
	plan, err := engine.Plan("fulltext")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	row := make([]any, len(plan.Columns))
	for i, col := range plan.Columns {
		switch col.Path {
		case "title":
			row[i] = title
		case "author":
			row[i] = author
		case "id":
			row[i] = int64(i)
		}
	}
	return row
}

func TestStreamSelectedColumns(t *testing.T) {
	engine := unified.NewEngine(domain.DefaultRegistry())
	lister := &stubLister{}
	lister.rows = [][]any{
		fullTextRow(t, engine, "First paper", "Smith"),
		fullTextRow(t, engine, "Second paper", "Jones"),
	}
	service := NewService(engine, lister)

	var buf bytes.Buffer
	err := service.Stream(context.Background(), &buf, "fulltext", url.Values{}, []string{"title", "author"})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][0] != "title" || records[0][1] != "author" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "First paper" || records[2][1] != "Jones" {
		t.Fatalf("unexpected rows: %v", records[1:])
	}
}

func TestStreamAllColumnsByDefault(t *testing.T) {
	engine := unified.NewEngine(domain.DefaultRegistry())
	lister := &stubLister{rows: [][]any{fullTextRow(t, engine, "Paper", "Smith")}}
	service := NewService(engine, lister)

	var buf bytes.Buffer
	if err := service.Stream(context.Background(), &buf, "fulltext", url.Values{}, nil); err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	plan, _ := engine.Plan("fulltext")
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records[0]) != len(plan.Columns) {
		t.Fatalf("expected %d columns, got %d", len(plan.Columns), len(records[0]))
	}
}

func TestStreamUnknownColumn(t *testing.T) {
	engine := unified.NewEngine(domain.DefaultRegistry())
	service := NewService(engine, &stubLister{})

	var buf bytes.Buffer
	err := service.Stream(context.Background(), &buf, "fulltext", url.Values{}, []string{"colour"})
	if err == nil || !strings.Contains(err.Error(), "unknown column") {
		t.Fatalf("expected unknown column error, got %v", err)
	}
}

func TestStreamUnknownModel(t *testing.T) {
	engine := unified.NewEngine(domain.DefaultRegistry())
	service := NewService(engine, &stubLister{})

	var buf bytes.Buffer
	if err := service.Stream(context.Background(), &buf, "creature", url.Values{}, nil); err == nil {
		t.Fatal("expected error for unknown model")
	}
}
