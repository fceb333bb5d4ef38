package repository

import (
	"context"

	"github.com/virodata/poxbase/internal/domain"
	"github.com/virodata/poxbase/internal/unified"
)

// UnifiedRepository executes declarative record queries produced by the
// unified engine. Rows come back as raw value slices in select-plan column
// order; the engine's plan flattens them for output.
type UnifiedRepository interface {
	List(ctx context.Context, plan *unified.SelectPlan, query domain.RecordQuery, limit, offset int) ([][]any, int, error)
}

// RecordRepository persists and loads the five record types for the import
// pipeline and the auxiliary endpoints. Insert methods return the assigned
// primary keys in input order.
type RecordRepository interface {
	FullTexts(ctx context.Context) ([]domain.FullText, error)
	InsertFullTexts(ctx context.Context, rows []domain.FullText) ([]int64, error)

	Descriptives(ctx context.Context) ([]domain.Descriptive, error)
	InsertDescriptives(ctx context.Context, rows []domain.Descriptive) ([]int64, error)

	Hosts(ctx context.Context) ([]domain.Host, error)
	InsertHosts(ctx context.Context, rows []domain.Host) ([]int64, error)

	Pathogens(ctx context.Context) ([]domain.Pathogen, error)
	InsertPathogens(ctx context.Context, rows []domain.Pathogen) ([]int64, error)

	Sequences(ctx context.Context) ([]domain.Sequence, error)
	InsertSequences(ctx context.Context, rows []domain.Sequence) ([]int64, error)

	CountByModel(ctx context.Context) (map[string]int64, error)
	HostPoints(ctx context.Context) ([]domain.HostPoint, error)
}
