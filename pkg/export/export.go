package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/grapat/backend/pkg/arggraph"
	"github.com/grapat/backend/pkg/leaselock"
	"github.com/grapat/backend/pkg/logger"
	"github.com/grapat/backend/pkg/natsort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RunLayout is the time layout of batch run names.
const RunLayout = "20060102-150405"

// BatchLockKey is the lease held for the duration of a batch export.
const BatchLockKey = "export:batch"

// maxRunAttempts bounds the suffixes tried when a run name is taken.
const maxRunAttempts = 100

// Locker runs fn while holding a named lease.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

type Exporter struct {
	source   Source
	sink     Sink
	parallel int
	locker   Locker
	now      func() time.Time

	single singleflight.Group

	runsMu sync.Mutex
	runs   map[string]struct{}
}

type NewExporterParams struct {
	Source Source
	// Sink may be nil when only single exports are used.
	Sink Sink
	// Parallel bounds concurrent exports in ExportAll. Values below 1 mean 1.
	Parallel int
	// Locker is optional. When set, ExportAll holds BatchLockKey.
	Locker Locker
	Now    func() time.Time
}

func NewExporter(params NewExporterParams) *Exporter {
	parallel := params.Parallel
	if parallel < 1 {
		parallel = 1
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Exporter{
		source:   params.Source,
		sink:     params.Sink,
		parallel: parallel,
		locker:   params.Locker,
		now:      now,
		runs:     make(map[string]struct{}),
	}
}

// ExportOne exports the latest snapshot a user saved for a sentence. It
// returns nil and no error when there is no snapshot or when the segments of
// the sentence cannot be read. Mapping failures are returned wrapped and
// still match *arggraph.MappingError.
func (e *Exporter) ExportOne(ctx context.Context, user, documentID, sentenceID string) ([]byte, error) {
	t := Target{User: user, Document: documentID, Sentence: sentenceID}

	snap, err := e.source.LatestGraph(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph for %s: %w", t, err)
	}
	if snap == nil {
		logger.Debug("[Export] No snapshot", "target", t.String())
		return nil, nil
	}
	logger.Debug("[Export] Exporting snapshot", "target", t.String(), "saved", snap.Saved)

	edus, err := e.source.EDUSource(ctx, documentID, sentenceID)
	if err != nil {
		logger.Warn("[Export] Could not read segments", "target", t.String(), "err", err)
		return nil, nil
	}

	g, err := arggraph.ParseGraph(snap.Graph)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", t, err)
	}

	out, err := arggraph.Export(documentID, g, edus)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", t, err)
	}
	return out, nil
}

// ExportDocument exports the first target of a document. Concurrent calls
// for the same document share one export. The shared export is not tied to
// any single caller; each caller stops waiting when its own ctx is done.
func (e *Exporter) ExportDocument(ctx context.Context, documentID string) ([]byte, error) {
	ch := e.single.DoChan(documentID, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		targets, err := e.source.TargetsForDocument(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("failed to list targets of %s: %w", documentID, err)
		}
		if len(targets) == 0 {
			return []byte(nil), nil
		}
		t := targets[0]
		return e.ExportOne(ctx, t.User, t.Document, t.Sentence)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Report summarises a batch export run.
type Report struct {
	Run string `json:"run"`
	// Written holds the file names that were written, in natural order.
	Written []string `json:"written"`
	// Skipped holds targets that failed with a mapping error.
	Skipped []Target `json:"skipped"`
	// Empty holds targets without a snapshot or readable segments.
	Empty []Target `json:"empty"`
}

// ExportAll exports every target into a fresh run of the sink. Targets
// failing with a mapping error are logged and skipped; any other failure
// aborts the run.
func (e *Exporter) ExportAll(ctx context.Context) (Report, error) {
	if e.sink == nil {
		return Report{}, errors.New("export sink not configured")
	}
	if e.locker == nil {
		return e.exportAll(ctx)
	}

	var report Report
	err := e.locker.WithLease(ctx, BatchLockKey, leaselock.Options{TTL: 2 * time.Minute}, func(ctx context.Context) error {
		var err error
		report, err = e.exportAll(ctx)
		return err
	})
	return report, err
}

// claimRun records run as used by this exporter. It reports false when the
// name was handed out before.
func (e *Exporter) claimRun(run string) bool {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	if _, ok := e.runs[run]; ok {
		return false
	}
	e.runs[run] = struct{}{}
	return true
}

// prepareRun picks a fresh run name from the current time and prepares it in
// the sink. Names already used by this exporter, or rejected by the sink with
// os.ErrExist, get a numeric suffix: 20060102-150405-2, -3 and so on.
func (e *Exporter) prepareRun(ctx context.Context) (string, error) {
	base := e.now().Format(RunLayout)
	for attempt := 1; attempt <= maxRunAttempts; attempt++ {
		run := base
		if attempt > 1 {
			run = fmt.Sprintf("%s-%d", base, attempt)
		}
		if !e.claimRun(run) {
			continue
		}
		err := e.sink.Prepare(ctx, run)
		if errors.Is(err, os.ErrExist) {
			logger.Debug("[Export] Run name taken", "run", run)
			continue
		}
		if err != nil {
			return "", err
		}
		return run, nil
	}
	return "", fmt.Errorf("no free run name for %s after %d attempts", base, maxRunAttempts)
}

func (e *Exporter) exportAll(ctx context.Context) (Report, error) {
	var report Report

	targets, err := e.source.ExportTargets(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list export targets: %w", err)
	}
	report.Run, err = e.prepareRun(ctx)
	if err != nil {
		return report, err
	}

	logger.Info("[Export] Starting batch", "run", report.Run, "targets", len(targets), "parallel", e.parallel)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)

	for _, t := range targets {
		g.Go(func() error {
			out, err := e.ExportOne(gctx, t.User, t.Document, t.Sentence)
			if err != nil {
				if arggraph.IsMappingError(err) {
					logger.Warn("[Export] Skipping target", "document", t.Document, "sentence", t.Sentence, "user", t.User, "err", err)
					mu.Lock()
					report.Skipped = append(report.Skipped, t)
					mu.Unlock()
					return nil
				}
				return err
			}
			if out == nil {
				mu.Lock()
				report.Empty = append(report.Empty, t)
				mu.Unlock()
				return nil
			}

			name := t.FileName()
			if err := e.sink.Put(gctx, report.Run, name, out); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
			mu.Lock()
			report.Written = append(report.Written, name)
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()

	natsort.Sort(report.Written)
	byTarget := func(a, b Target) int { return natsort.Compare(a.FileName(), b.FileName()) }
	slices.SortFunc(report.Skipped, byTarget)
	slices.SortFunc(report.Empty, byTarget)

	if err != nil {
		logger.Error("[Export] Batch aborted", "run", report.Run, "err", err)
		return report, err
	}

	logger.Info("[Export] Batch finished",
		"run", report.Run,
		"written", len(report.Written),
		"skipped", len(report.Skipped),
		"empty", len(report.Empty),
	)
	return report, nil
}
