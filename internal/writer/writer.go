// Package writer performs diff-aware writes of generated artifacts.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type Status string

const (
	StatusWritten     Status = "written"
	StatusSkippedSame Status = "skipped_same"
	StatusDryRun      Status = "dry_run"
	StatusStale       Status = "stale"
)

// ErrStale is returned in check mode when the file on disk differs.
var ErrStale = errors.New("generated file is out of date")

// Options configure write behaviour.
type Options struct {
	DryRun bool
	// Check reports ErrStale instead of writing.
	Check  bool
	Header string
}

// Option mutates Options.
type Option func(*Options)

// WithDryRun enables dry-run mode (no writes).
func WithDryRun(dry bool) Option {
	return func(o *Options) {
		o.DryRun = dry
	}
}

// WithCheck makes writes fail with ErrStale when content changed.
func WithCheck(check bool) Option {
	return func(o *Options) {
		o.Check = check
	}
}

// WithHeader prepends header to every written file.
func WithHeader(header string) Option {
	return func(o *Options) {
		o.Header = header
	}
}

// Writer performs diff-aware writes.
type Writer struct {
	options Options
}

// New creates a writer with provided options.
func New(opts ...Option) *Writer {
	var options Options
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &Writer{options: options}
}

// WriteGenerated writes content to path unless the file already holds the
// same bytes. Content always ends with a single newline.
func (w *Writer) WriteGenerated(path string, content []byte) (Status, error) {
	content = w.render(content)

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return StatusSkippedSame, nil
	}

	if w.options.Check {
		return StatusStale, fmt.Errorf("%s: %w", path, ErrStale)
	}

	if w.options.DryRun {
		return StatusDryRun, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Status(""), fmt.Errorf("create dir: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return Status(""), fmt.Errorf("write file: %w", err)
	}

	return StatusWritten, nil
}

func (w *Writer) render(content []byte) []byte {
	var buf bytes.Buffer
	if w.options.Header != "" {
		buf.WriteString(w.options.Header)
		if !bytes.HasSuffix([]byte(w.options.Header), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	buf.Write(bytes.TrimRight(content, "\n"))
	buf.WriteByte('\n')
	return buf.Bytes()
}
