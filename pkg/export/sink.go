package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives the files of a batch export run.
type Sink interface {
	// Prepare is called once per run before any Put.
	Prepare(ctx context.Context, run string) error
	Put(ctx context.Context, run, name string, data []byte) error
}

// DirSink writes each run into a fresh directory below Root.
type DirSink struct {
	Root string
}

func (s DirSink) Prepare(_ context.Context, run string) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create export root: %w", err)
	}
	// Mkdir rather than MkdirAll: a run directory is never reused.
	if err := os.Mkdir(filepath.Join(s.Root, run), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	return nil
}

func (s DirSink) Put(_ context.Context, run, name string, data []byte) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid export file name %q", name)
	}
	return os.WriteFile(filepath.Join(s.Root, run, name), data, 0o644)
}

// ObjectPutter stores an object under an exact key.
type ObjectPutter interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// S3Sink uploads each file to <Prefix>/<run>/<name>.
type S3Sink struct {
	Objects ObjectPutter
	Prefix  string
}

func (s S3Sink) Prepare(context.Context, string) error {
	return nil
}

func (s S3Sink) Put(ctx context.Context, run, name string, data []byte) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "exports"
	}
	return s.Objects.PutObject(ctx, prefix+"/"+run+"/"+name, "application/xml", data)
}

// MultiSink fans every call out to all sinks in order. Put stops at the first
// failing sink.
type MultiSink []Sink

func (m MultiSink) Prepare(ctx context.Context, run string) error {
	var errs []error
	for _, s := range m {
		if err := s.Prepare(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Put(ctx context.Context, run, name string, data []byte) error {
	for _, s := range m {
		if err := s.Put(ctx, run, name, data); err != nil {
			return err
		}
	}
	return nil
}
