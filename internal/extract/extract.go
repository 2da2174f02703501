// Package extract writes the resources of a web archive out as files.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/zdypro888/webarchive"
)

// DefaultJobs is the number of files written concurrently unless
// WithJobs says otherwise.
const DefaultJobs = 4

// Entry describes where one resource of an archive is written.
type Entry struct {
	URL      string `yaml:"url"`
	MIMEType string `yaml:"mime_type"`
	Path     string `yaml:"path"`
	Size     int    `yaml:"size"`
	// Frame is the subframe path of the archive holding the resource;
	// it is empty for the top-level page.
	Frame []int `yaml:"frame,flow,omitempty"`
	// Duplicate is set when an earlier resource already claimed Path.
	// Duplicates are not written.
	Duplicate bool `yaml:"duplicate,omitempty"`

	data []byte
}

// Plan lists the resources of a in extraction order: for each archive its
// main resource, then its subresources, then its subframes in turn.
func Plan(a *webarchive.Archive) []Entry {
	var entries []Entry
	claimed := make(map[string]bool)
	_ = a.Walk(func(frame []int, a *webarchive.Archive) error {
		add := func(r *webarchive.Resource) {
			e := Entry{
				URL:      r.URL,
				MIMEType: r.MIMEType,
				Path:     Path(r),
				Size:     len(r.Data),
				Frame:    append([]int(nil), frame...),
				data:     r.Data,
			}
			e.Duplicate = claimed[e.Path]
			claimed[e.Path] = true
			entries = append(entries, e)
		}
		add(&a.MainResource)
		for i := range a.Subresources {
			add(&a.Subresources[i])
		}
		return nil
	})
	return entries
}

// Extractor writes archives into a directory.
type Extractor struct {
	dir    string
	jobs   int
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithJobs sets how many files are written at once. Values below one are
// treated as one.
func WithJobs(n int) Option {
	return func(e *Extractor) {
		if n < 1 {
			n = 1
		}
		e.jobs = n
	}
}

// WithLogger sets the logger progress is reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New returns an Extractor writing below dir.
func New(dir string, opts ...Option) *Extractor {
	e := &Extractor{
		dir:    dir,
		jobs:   DefaultJobs,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes every resource of a to its planned path and returns the
// plan. Parent directories are created as needed and existing files are
// replaced. The first failure cancels the remaining writes.
func (e *Extractor) Extract(ctx context.Context, a *webarchive.Archive) ([]Entry, error) {
	entries := Plan(a)
	e.logger.Info("extracting archive",
		"url", a.MainResource.URL,
		"resources", len(entries),
		"dir", e.dir,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)
	for i := range entries {
		entry := &entries[i]
		if entry.Duplicate {
			e.logger.Warn("skipping resource with duplicate path", "url", entry.URL, "path", entry.Path)
			continue
		}
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return e.write(entry)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (e *Extractor) write(entry *Entry) error {
	target := filepath.Join(e.dir, filepath.FromSlash(entry.Path))
	e.logger.Debug("writing file", "path", target, "bytes", entry.Size)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("extract %s: %w", entry.URL, err)
	}
	if err := os.WriteFile(target, entry.data, 0o644); err != nil {
		return fmt.Errorf("extract %s: %w", entry.URL, err)
	}
	return nil
}
