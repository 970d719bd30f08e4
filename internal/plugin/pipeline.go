package plugin

import (
	"iter"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// RootResolver supplies plugin roots, highest priority first.
type RootResolver interface {
	Roots() []string
}

// Pipeline loads every plugin found under the resolver's roots.
//
// Plugins with the same name under different roots are all emitted, in root
// order. Nothing is cached between runs.
type Pipeline struct {
	roots       RootResolver
	loader      ConfigLoader
	scanner     *Scanner
	concurrency int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency caps in-flight loads for LoadAllAsync. Values below 1 mean
// the logical core count.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 1 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger for the pipeline and its scanner.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a pipeline over roots using loader for each candidate.
func NewPipeline(roots RootResolver, loader ConfigLoader, opts ...Option) *Pipeline {
	p := &Pipeline{
		roots:       roots,
		loader:      loader,
		concurrency: runtime.NumCPU(),
		logger:      discardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.scanner = NewScanner(p.logger)
	return p
}

// Concurrency reports the in-flight cap used by LoadAllAsync.
func (p *Pipeline) Concurrency() int {
	return p.concurrency
}

// LoadAll scans and loads sequentially on the calling goroutine.
func (p *Pipeline) LoadAll() []LoadedPlugin {
	logger := p.runLogger("sync")
	start := time.Now()

	var out []LoadedPlugin
	candidates := 0
	for _, root := range p.roots.Roots() {
		for _, c := range p.scanner.Scan(root) {
			candidates++
			if lp, ok := p.loader.Load(c.Source, c.Descriptor); ok {
				out = append(out, lp)
			}
		}
	}

	logger.Info("plugins loaded",
		"candidates", candidates,
		"loaded", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// LoadAllAsync returns a lazy sequence of loaded plugins. Roots are scanned in
// priority order by background producers and up to Concurrency loads run at
// once, but plugins are yielded in the same order LoadAll returns them.
// Work starts when the sequence is ranged over; breaking out abandons it.
func (p *Pipeline) LoadAllAsync() iter.Seq[LoadedPlugin] {
	return func(yield func(LoadedPlugin) bool) {
		logger := p.runLogger("async")
		start := time.Now()

		candidates, loaded := 0, 0
		defer func() {
			logger.Info("plugins loaded",
				"candidates", candidates,
				"loaded", loaded,
				"concurrency", p.concurrency,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		scanned := func(yield func(Candidate) bool) {
			for _, root := range p.roots.Roots() {
				for c := range p.scanner.ScanSeq(root) {
					candidates++
					if !yield(c) {
						return
					}
				}
			}
		}

		load := func(c Candidate) (LoadedPlugin, bool) {
			return p.loader.Load(c.Source, c.Descriptor)
		}

		for lp := range buffered(scanned, p.concurrency, load, logger) {
			loaded++
			if !yield(lp) {
				return
			}
		}
	}
}

func (p *Pipeline) runLogger(mode string) *slog.Logger {
	return p.logger.With("run_id", uuid.NewString(), "mode", mode)
}
