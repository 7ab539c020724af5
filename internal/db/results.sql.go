// source: results.sql

package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertResult = `-- name: InsertResult :exec
INSERT INTO results (username, annotation_bundle, sentence, graph, layout, time)
VALUES ($1, $2, $3, $4, $5, now())
`

type InsertResultParams struct {
	Username         string `json:"username"`
	AnnotationBundle string `json:"annotation_bundle"`
	Sentence         string `json:"sentence"`
	Graph            string `json:"graph"`
	Layout           string `json:"layout"`
}

func (q *Queries) InsertResult(ctx context.Context, arg InsertResultParams) error {
	_, err := q.db.Exec(ctx, insertResult,
		arg.Username,
		arg.AnnotationBundle,
		arg.Sentence,
		arg.Graph,
		arg.Layout,
	)
	return err
}

const getLatestResult = `-- name: GetLatestResult :one
SELECT graph, layout, time FROM results
WHERE username = $1 AND annotation_bundle = $2 AND sentence = $3
ORDER BY time DESC
LIMIT 1
`

type GetLatestResultParams struct {
	Username         string `json:"username"`
	AnnotationBundle string `json:"annotation_bundle"`
	Sentence         string `json:"sentence"`
}

type GetLatestResultRow struct {
	Graph  string             `json:"graph"`
	Layout string             `json:"layout"`
	Time   pgtype.Timestamptz `json:"time"`
}

func (q *Queries) GetLatestResult(ctx context.Context, arg GetLatestResultParams) (GetLatestResultRow, error) {
	row := q.db.QueryRow(ctx, getLatestResult, arg.Username, arg.AnnotationBundle, arg.Sentence)
	var i GetLatestResultRow
	err := row.Scan(&i.Graph, &i.Layout, &i.Time)
	return i, err
}

const listExportTargets = `-- name: ListExportTargets :many
SELECT DISTINCT username, annotation_bundle, sentence FROM results
ORDER BY annotation_bundle, sentence, username
`

type ListExportTargetsRow struct {
	Username         string `json:"username"`
	AnnotationBundle string `json:"annotation_bundle"`
	Sentence         string `json:"sentence"`
}

func (q *Queries) ListExportTargets(ctx context.Context) ([]ListExportTargetsRow, error) {
	rows, err := q.db.Query(ctx, listExportTargets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListExportTargetsRow
	for rows.Next() {
		var i ListExportTargetsRow
		if err := rows.Scan(&i.Username, &i.AnnotationBundle, &i.Sentence); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExportTargetsForBundle = `-- name: ListExportTargetsForBundle :many
SELECT DISTINCT username, annotation_bundle, sentence FROM results
WHERE annotation_bundle = $1
ORDER BY sentence, username
`

func (q *Queries) ListExportTargetsForBundle(ctx context.Context, annotationBundle string) ([]ListExportTargetsRow, error) {
	rows, err := q.db.Query(ctx, listExportTargetsForBundle, annotationBundle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListExportTargetsRow
	for rows.Next() {
		var i ListExportTargetsRow
		if err := rows.Scan(&i.Username, &i.AnnotationBundle, &i.Sentence); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteResultsForBundle = `-- name: DeleteResultsForBundle :exec
DELETE FROM results WHERE annotation_bundle = $1
`

func (q *Queries) DeleteResultsForBundle(ctx context.Context, annotationBundle string) error {
	_, err := q.db.Exec(ctx, deleteResultsForBundle, annotationBundle)
	return err
}
