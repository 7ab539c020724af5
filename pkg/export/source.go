package export

import (
	"context"
	"fmt"
	"time"
)

// Target identifies one exportable annotation: the latest graph a user
// saved for a sentence of a document.
type Target struct {
	User     string `json:"user"`
	Document string `json:"document"`
	Sentence string `json:"sentence"`
}

// FileName is the batch export file name of the target.
func (t Target) FileName() string {
	return fmt.Sprintf("%s-%s-%s.xml", t.Document, t.Sentence, t.User)
}

func (t Target) String() string {
	return t.Document + "/" + t.Sentence + "@" + t.User
}

// Snapshot is a stored graph snapshot.
type Snapshot struct {
	Graph []byte
	Saved time.Time
}

// Source is the store read contract of the exporter.
type Source interface {
	// LatestGraph returns the most recently saved snapshot for the target,
	// or nil when none exists.
	LatestGraph(ctx context.Context, t Target) (*Snapshot, error)
	// EDUSource returns the segment texts of a sentence keyed by segment id.
	EDUSource(ctx context.Context, document, sentence string) (map[string]string, error)
	// ExportTargets lists every distinct target with at least one snapshot.
	ExportTargets(ctx context.Context) ([]Target, error)
	// TargetsForDocument lists the distinct targets of one document.
	TargetsForDocument(ctx context.Context, document string) ([]Target, error)
}
