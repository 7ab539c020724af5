package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type AnnotationBundle struct {
	ID         string      `json:"id"`
	Semantics  string      `json:"semantics"`
	EntityID   string      `json:"entity_id"`
	SentenceID pgtype.Int4 `json:"sentence_id"`
	Segment    string      `json:"segment"`
	Position   int64       `json:"position"`
}

type Result struct {
	Username         string             `json:"username"`
	AnnotationBundle string             `json:"annotation_bundle"`
	Sentence         string             `json:"sentence"`
	Graph            string             `json:"graph"`
	Layout           string             `json:"layout"`
	Time             pgtype.Timestamptz `json:"time"`
}
