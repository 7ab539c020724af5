package db

import (
	"context"
	"errors"
	"strconv"

	"github.com/grapat/backend/pkg/export"

	"github.com/jackc/pgx/v5"
)

type exportQuerier interface {
	GetLatestResult(ctx context.Context, arg GetLatestResultParams) (GetLatestResultRow, error)
	GetEntitySegments(ctx context.Context, arg GetEntitySegmentsParams) ([]string, error)
	ListExportTargets(ctx context.Context) ([]ListExportTargetsRow, error)
	ListExportTargetsForBundle(ctx context.Context, annotationBundle string) ([]ListExportTargetsRow, error)
}

// ExportSource reads export inputs from the results and annotation_bundles
// tables.
type ExportSource struct {
	q exportQuerier
}

func NewExportSource(conn DBTX) *ExportSource {
	return &ExportSource{q: New(conn)}
}

func (s *ExportSource) LatestGraph(ctx context.Context, t export.Target) (*export.Snapshot, error) {
	row, err := s.q.GetLatestResult(ctx, GetLatestResultParams{
		Username:         t.User,
		AnnotationBundle: t.Document,
		Sentence:         t.Sentence,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &export.Snapshot{Graph: []byte(row.Graph), Saved: row.Time.Time}, nil
}

// EDUSource keys the segments of an entity by their position, "0".."N-1".
func (s *ExportSource) EDUSource(ctx context.Context, document, sentence string) (map[string]string, error) {
	segments, err := s.q.GetEntitySegments(ctx, GetEntitySegmentsParams{ID: document, EntityID: sentence})
	if err != nil {
		return nil, err
	}
	edus := make(map[string]string, len(segments))
	for i, segment := range segments {
		edus[strconv.Itoa(i)] = segment
	}
	return edus, nil
}

func (s *ExportSource) ExportTargets(ctx context.Context) ([]export.Target, error) {
	rows, err := s.q.ListExportTargets(ctx)
	if err != nil {
		return nil, err
	}
	return toTargets(rows), nil
}

func (s *ExportSource) TargetsForDocument(ctx context.Context, document string) ([]export.Target, error) {
	rows, err := s.q.ListExportTargetsForBundle(ctx, document)
	if err != nil {
		return nil, err
	}
	return toTargets(rows), nil
}

func toTargets(rows []ListExportTargetsRow) []export.Target {
	targets := make([]export.Target, 0, len(rows))
	for _, r := range rows {
		targets = append(targets, export.Target{User: r.Username, Document: r.AnnotationBundle, Sentence: r.Sentence})
	}
	return targets
}
