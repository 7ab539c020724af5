// source: annotation_bundles.sql

package db

import (
	"context"
)

const insertSegment = `-- name: InsertSegment :exec
INSERT INTO annotation_bundles (id, semantics, entity_id, segment)
VALUES ($1, $2, $3, $4)
`

type InsertSegmentParams struct {
	ID        string `json:"id"`
	Semantics string `json:"semantics"`
	EntityID  string `json:"entity_id"`
	Segment   string `json:"segment"`
}

func (q *Queries) InsertSegment(ctx context.Context, arg InsertSegmentParams) error {
	_, err := q.db.Exec(ctx, insertSegment,
		arg.ID,
		arg.Semantics,
		arg.EntityID,
		arg.Segment,
	)
	return err
}

const listBundleIDs = `-- name: ListBundleIDs :many
SELECT id FROM annotation_bundles
GROUP BY id
ORDER BY min(position)
`

func (q *Queries) ListBundleIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listBundleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getBundleSegments = `-- name: GetBundleSegments :many
SELECT id, semantics, entity_id, sentence_id, segment, position FROM annotation_bundles
WHERE id = $1
ORDER BY position
`

func (q *Queries) GetBundleSegments(ctx context.Context, id string) ([]AnnotationBundle, error) {
	rows, err := q.db.Query(ctx, getBundleSegments, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnnotationBundle
	for rows.Next() {
		var i AnnotationBundle
		if err := rows.Scan(
			&i.ID,
			&i.Semantics,
			&i.EntityID,
			&i.SentenceID,
			&i.Segment,
			&i.Position,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getEntitySegments = `-- name: GetEntitySegments :many
SELECT segment FROM annotation_bundles
WHERE id = $1 AND entity_id = $2
ORDER BY position
`

type GetEntitySegmentsParams struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
}

func (q *Queries) GetEntitySegments(ctx context.Context, arg GetEntitySegmentsParams) ([]string, error) {
	rows, err := q.db.Query(ctx, getEntitySegments, arg.ID, arg.EntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var segment string
		if err := rows.Scan(&segment); err != nil {
			return nil, err
		}
		items = append(items, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteBundle = `-- name: DeleteBundle :exec
DELETE FROM annotation_bundles WHERE id = $1
`

func (q *Queries) DeleteBundle(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deleteBundle, id)
	return err
}
