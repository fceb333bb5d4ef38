// Package export streams filtered unified result sets as CSV downloads.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/virodata/poxbase/internal/unified"
)

// readPageSize is how many rows each backing query fetches while streaming.
const readPageSize = 500

// Service renders query results as CSV, reading the backing store in pages so
// exports of any size stream without buffering the full result set.
type Service struct {
	engine *unified.Engine
	lister unified.Lister
}

// NewService wires the unified engine and its query executor.
func NewService(engine *unified.Engine, lister unified.Lister) *Service {
	return &Service{engine: engine, lister: lister}
}

// Validate checks that a model is exportable before any output is written.
func (s *Service) Validate(model string) error {
	_, err := s.engine.Plan(model)
	return err
}

// Stream writes the filtered result set for one model as CSV. columns narrows
// the output to the named field paths, in the given order; unknown paths are
// rejected. An empty selection exports the model's full output plan.
func (s *Service) Stream(ctx context.Context, w io.Writer, model string, params url.Values, columns []string) error {
	plan, err := s.engine.Plan(model)
	if err != nil {
		return err
	}

	selected, indices, err := selectColumns(plan, columns)
	if err != nil {
		return err
	}

	// Invalid filter values are already excluded from the query.
	query, _, err := s.engine.BuildQuery(model, params)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := make([]string, len(selected))
	for i, col := range selected {
		header[i] = col.Path
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	offset := 0
	record := make([]string, len(selected))
	for {
		rows, _, err := s.lister.List(ctx, plan, query, readPageSize, offset)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			flattened, err := plan.Render(row)
			if err != nil {
				return err
			}
			for i, planIdx := range indices {
				record[i] = unified.FormatCSV(flattened[plan.Columns[planIdx].Path])
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		if len(rows) < readPageSize {
			break
		}
		offset += readPageSize
	}

	writer.Flush()
	return writer.Error()
}

// selectColumns resolves a column selection against the plan, returning the
// chosen columns and their plan indices.
func selectColumns(plan *unified.SelectPlan, columns []string) ([]unified.PlanColumn, []int, error) {
	if len(columns) == 0 {
		selected := make([]unified.PlanColumn, len(plan.Columns))
		indices := make([]int, len(plan.Columns))
		for i, col := range plan.Columns {
			selected[i] = col
			indices[i] = i
		}
		return selected, indices, nil
	}

	byPath := make(map[string]int, len(plan.Columns))
	for i, col := range plan.Columns {
		byPath[col.Path] = i
	}

	var selected []unified.PlanColumn
	var indices []int
	for _, raw := range columns {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		idx, ok := byPath[path]
		if !ok {
			return nil, nil, fmt.Errorf("unknown column %q", path)
		}
		selected = append(selected, plan.Columns[idx])
		indices = append(indices, idx)
	}
	if len(selected) == 0 {
		return nil, nil, fmt.Errorf("no valid columns selected")
	}
	return selected, indices, nil
}
