package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grapat/backend/pkg/arggraph"
	"github.com/grapat/backend/pkg/leaselock"
	"github.com/grapat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proponentGraph = `{
	"nodes": {"node_x": {"n_type": "node_type_proponent"}},
	"edges": {"word_0": {"node_x": {"k0": {}}}, "word_1": {"node_x": {"k1": {}}}}
}`

const brokenGraph = `{"nodes": {"n": {"n_type": "node_type_unknown_future_value"}}}`

type memSource struct {
	graphs   map[Target]string
	edus     map[string]map[string]string
	eduErr   error
	graphErr error
	calls    atomic.Int32
}

func eduKey(document, sentence string) string { return document + "|" + sentence }

func (m *memSource) LatestGraph(_ context.Context, t Target) (*Snapshot, error) {
	m.calls.Add(1)
	if m.graphErr != nil {
		return nil, m.graphErr
	}
	g, ok := m.graphs[t]
	if !ok {
		return nil, nil
	}
	return &Snapshot{Graph: []byte(g), Saved: time.Unix(0, 0)}, nil
}

func (m *memSource) EDUSource(_ context.Context, document, sentence string) (map[string]string, error) {
	if m.eduErr != nil {
		return nil, m.eduErr
	}
	return m.edus[eduKey(document, sentence)], nil
}

func (m *memSource) ExportTargets(context.Context) ([]Target, error) {
	var out []Target
	for t := range m.graphs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName() < out[j].FileName() })
	return out, nil
}

func (m *memSource) TargetsForDocument(ctx context.Context, document string) ([]Target, error) {
	all, _ := m.ExportTargets(ctx)
	var out []Target
	for _, t := range all {
		if t.Document == document {
			out = append(out, t)
		}
	}
	return out, nil
}

type memSink struct {
	mu       sync.Mutex
	prepared []string
	files    map[string][]byte
	failOn   string
}

func (s *memSink) Prepare(_ context.Context, run string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared = append(s.prepared, run)
	return nil
}

func (s *memSink) Put(_ context.Context, run, name string, data []byte) error {
	if name == s.failOn {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[run+"/"+name] = data
	return nil
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
}

func TestExportOne(t *testing.T) {
	src := &memSource{
		graphs: map[Target]string{{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph},
		edus:   map[string]map[string]string{eduKey("d1", "s1"): {"0": "Cats are mammals.", "1": "Dogs are too."}},
	}
	e := NewExporter(NewExporterParams{Source: src})

	out, err := e.ExportOne(context.Background(), "alice", "d1", "s1")
	require.NoError(t, err)
	assert.Contains(t, string(out), `<arggraph id="d1">`)
	assert.Contains(t, string(out), `<edge id="c2" src="e2" trg="a1" type="seg"/>`)
}

func TestExportOneWithoutSnapshot(t *testing.T) {
	e := NewExporter(NewExporterParams{Source: &memSource{}})

	out, err := e.ExportOne(context.Background(), "alice", "d1", "s1")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExportOneUnreadableSegments(t *testing.T) {
	src := &memSource{
		graphs: map[Target]string{{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph},
		eduErr: errors.New("connection reset"),
	}
	e := NewExporter(NewExporterParams{Source: src})

	out, err := e.ExportOne(context.Background(), "alice", "d1", "s1")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExportOneStoreFailure(t *testing.T) {
	e := NewExporter(NewExporterParams{Source: &memSource{graphErr: errors.New("pool closed")}})

	_, err := e.ExportOne(context.Background(), "alice", "d1", "s1")
	require.Error(t, err)
	assert.False(t, arggraph.IsMappingError(err))
}

func TestExportOneMappingError(t *testing.T) {
	src := &memSource{
		graphs: map[Target]string{{User: "bob", Document: "d2", Sentence: "0"}: brokenGraph},
	}
	e := NewExporter(NewExporterParams{Source: src})

	_, err := e.ExportOne(context.Background(), "bob", "d2", "0")
	require.ErrorIs(t, err, arggraph.ErrUnknownNodeType)
	assert.True(t, arggraph.IsMappingError(err))
	assert.Contains(t, err.Error(), "d2/0@bob")
}

func TestExportAllSkipsMappingErrors(t *testing.T) {
	rec := logger.NewRecorder()
	logger.Init(rec)
	t.Cleanup(func() { logger.Init() })

	src := &memSource{
		graphs: map[Target]string{
			{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph,
			{User: "bob", Document: "d2", Sentence: "s1"}:   brokenGraph,
			{User: "carol", Document: "d10", Sentence: "s2"}: `{}`,
		},
		edus: map[string]map[string]string{eduKey("d1", "s1"): {"0": "a", "1": "b"}},
	}
	sink := &memSink{}

	for _, parallel := range []int{1, 4} {
		e := NewExporter(NewExporterParams{Source: src, Sink: sink, Parallel: parallel, Now: fixedNow})
		report, err := e.ExportAll(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "20240309-140507", report.Run)
		assert.Equal(t, []string{"d1-s1-alice.xml", "d10-s2-carol.xml"}, report.Written)
		assert.Equal(t, []Target{{User: "bob", Document: "d2", Sentence: "s1"}}, report.Skipped)
		assert.Empty(t, report.Empty)
	}

	assert.Contains(t, string(sink.files["20240309-140507/d1-s1-alice.xml"]), `type="pro"`)
	assert.Contains(t, string(sink.files["20240309-140507/d10-s2-carol.xml"]), `<arggraph id="d10"/>`)
	assert.NotContains(t, sink.files, "20240309-140507/d2-s1-bob.xml")

	warnings := rec.Entries("warn")
	require.NotEmpty(t, warnings)
	doc, _ := warnings[0].Value("document")
	assert.Equal(t, "d2", doc)
}

func TestExportAllAbortsOnOtherErrors(t *testing.T) {
	src := &memSource{
		graphs: map[Target]string{
			{User: "alice", Document: "d1", Sentence: "s1"}: `{"nodes": [`,
		},
	}
	e := NewExporter(NewExporterParams{Source: src, Sink: &memSink{}, Now: fixedNow})

	_, err := e.ExportAll(context.Background())
	require.ErrorIs(t, err, arggraph.ErrInvalidSnapshot)
}

func TestExportAllAbortsOnSinkError(t *testing.T) {
	src := &memSource{
		graphs: map[Target]string{{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph},
		edus:   map[string]map[string]string{eduKey("d1", "s1"): {"0": "a", "1": "b"}},
	}
	e := NewExporter(NewExporterParams{Source: src, Sink: &memSink{failOn: "d1-s1-alice.xml"}, Now: fixedNow})

	_, err := e.ExportAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExportAllWithoutSink(t *testing.T) {
	e := NewExporter(NewExporterParams{Source: &memSource{}})
	_, err := e.ExportAll(context.Background())
	assert.Error(t, err)
}

type fakeLocker struct {
	keys []string
	busy bool
}

func (l *fakeLocker) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.busy {
		return leaselock.ErrBusy
	}
	return fn(ctx)
}

func TestExportAllHoldsBatchLease(t *testing.T) {
	locker := &fakeLocker{}
	e := NewExporter(NewExporterParams{Source: &memSource{}, Sink: &memSink{}, Locker: locker, Now: fixedNow})

	report, err := e.ExportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20240309-140507", report.Run)
	assert.Equal(t, []string{BatchLockKey}, locker.keys)

	locker.busy = true
	_, err = e.ExportAll(context.Background())
	assert.ErrorIs(t, err, leaselock.ErrBusy)
}

func TestExportDocument(t *testing.T) {
	src := &memSource{
		graphs: map[Target]string{
			{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph,
			{User: "bob", Document: "d1", Sentence: "s2"}:   brokenGraph,
		},
		edus: map[string]map[string]string{eduKey("d1", "s1"): {"0": "a", "1": "b"}},
	}
	e := NewExporter(NewExporterParams{Source: src})

	out, err := e.ExportDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Contains(t, string(out), `<arggraph id="d1">`)

	out, err = e.ExportDocument(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, out)
}

type gatedSource struct {
	*memSource
	entered chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (g *gatedSource) TargetsForDocument(ctx context.Context, document string) ([]Target, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	select {
	case g.ctxErr <- ctx.Err():
	default:
	}
	return g.memSource.TargetsForDocument(ctx, document)
}

func TestExportDocumentSurvivesCallerCancel(t *testing.T) {
	src := &gatedSource{
		memSource: &memSource{
			graphs: map[Target]string{{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph},
			edus:   map[string]map[string]string{eduKey("d1", "s1"): {"0": "a", "1": "b"}},
		},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	e := NewExporter(NewExporterParams{Source: src})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.ExportDocument(ctx, "d1")
		firstErr <- err
	}()
	<-src.entered

	type result struct {
		out []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		out, err := e.ExportDocument(context.Background(), "d1")
		second <- result{out, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Contains(t, string(res.out), `<arggraph id="d1">`)
	assert.NoError(t, <-src.ctxErr, "shared export must not inherit the first caller's cancellation")
}

func TestExportAllBackToBackRuns(t *testing.T) {
	root := t.TempDir()
	src := &memSource{
		graphs: map[Target]string{{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph},
		edus:   map[string]map[string]string{eduKey("d1", "s1"): {"0": "a", "1": "b"}},
	}
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	e := NewExporter(NewExporterParams{Source: src, Sink: DirSink{Root: root}, Now: now})

	first, err := e.ExportAll(context.Background())
	require.NoError(t, err)
	second, err := e.ExportAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20260101-000000", first.Run)
	assert.Equal(t, "20260101-000000-2", second.Run)
	for _, run := range []string{first.Run, second.Run} {
		_, err := os.Stat(filepath.Join(root, run, "d1-s1-alice.xml"))
		assert.NoError(t, err, run)
	}

	// A run directory left by another process is skipped as well.
	require.NoError(t, os.Mkdir(filepath.Join(root, "20260101-000000-3"), 0o755))
	other := NewExporter(NewExporterParams{Source: src, Sink: DirSink{Root: root}, Now: now})
	third, err := other.ExportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20260101-000000-4", third.Run)
}

func TestExportOneLogsSnapshotTime(t *testing.T) {
	rec := logger.NewRecorder()
	logger.Init(rec)
	t.Cleanup(func() { logger.Init() })

	src := &memSource{
		graphs: map[Target]string{{User: "alice", Document: "d1", Sentence: "s1"}: proponentGraph},
		edus:   map[string]map[string]string{eduKey("d1", "s1"): {"0": "a", "1": "b"}},
	}
	e := NewExporter(NewExporterParams{Source: src})
	_, err := e.ExportOne(context.Background(), "alice", "d1", "s1")
	require.NoError(t, err)

	var saved any
	for _, entry := range rec.Entries("debug") {
		if v, ok := entry.Value("saved"); ok {
			saved = v
		}
	}
	assert.Equal(t, time.Unix(0, 0), saved)
}

func TestDirSink(t *testing.T) {
	root := filepath.Join(t.TempDir(), "exports")
	sink := DirSink{Root: root}
	ctx := context.Background()

	require.NoError(t, sink.Prepare(ctx, "20240309-140507"))
	require.NoError(t, sink.Put(ctx, "20240309-140507", "d1-s1-alice.xml", []byte("<x/>")))

	data, err := os.ReadFile(filepath.Join(root, "20240309-140507", "d1-s1-alice.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<x/>", string(data))

	assert.ErrorIs(t, sink.Prepare(ctx, "20240309-140507"), os.ErrExist, "run directories are created fresh")
	assert.Error(t, sink.Put(ctx, "20240309-140507", "../escape.xml", nil))
}

type memObjects struct {
	keys map[string]string
}

func (m *memObjects) PutObject(_ context.Context, key, contentType string, _ []byte) error {
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	m.keys[key] = contentType
	return nil
}

func TestS3AndMultiSink(t *testing.T) {
	objects := &memObjects{}
	mem := &memSink{}
	sink := MultiSink{S3Sink{Objects: objects}, mem}
	ctx := context.Background()

	require.NoError(t, sink.Prepare(ctx, "run1"))
	require.NoError(t, sink.Put(ctx, "run1", "d1-s1-alice.xml", []byte("<x/>")))

	assert.Equal(t, map[string]string{"exports/run1/d1-s1-alice.xml": "application/xml"}, objects.keys)
	assert.Equal(t, []string{"run1"}, mem.prepared)
	assert.Contains(t, mem.files, "run1/d1-s1-alice.xml")
}

func TestTargetFileName(t *testing.T) {
	assert.Equal(t, "doc-3-alice.xml", Target{User: "alice", Document: "doc", Sentence: "3"}.FileName())
}
