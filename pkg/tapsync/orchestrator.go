// Package tapsync drives a sync run: it filters the catalog down to the
// selected streams, executes them one at a time in discovery order, wires
// each stream's emit callbacks into the output protocol, and keeps one
// stream's failure from cancelling its siblings.
package tapsync

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-nomad/pkg/catalog"
	"github.com/ajitpratap0/tap-nomad/pkg/config"
	"github.com/ajitpratap0/tap-nomad/pkg/metrics"
	"github.com/ajitpratap0/tap-nomad/pkg/singer"
	"github.com/ajitpratap0/tap-nomad/pkg/state"
	"github.com/ajitpratap0/tap-nomad/pkg/streams"
	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// Orchestrator executes one sync run over the selected streams.
type Orchestrator struct {
	registry *catalog.Registry
	fetcher  streams.Fetcher
	cfg      *config.Config
	writer   *singer.Writer
	logger   *zap.Logger
	stopping atomic.Bool
}

// StreamResult is one stream's outcome within a run.
type StreamResult struct {
	Stream   string
	Records  int64
	Duration time.Duration
	// Bookmark is the last committed bookmark, the safe resume point even
	// when Err is set
	Bookmark state.Bookmark
	Err      error
	Skipped  bool
}

// Summary aggregates per-stream outcomes for the whole run.
type Summary struct {
	Results []StreamResult
}

// Failed returns the results of streams that raised an error.
func (s *Summary) Failed() []StreamResult {
	var failed []StreamResult
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Records returns the total records emitted across all streams.
func (s *Summary) Records() int64 {
	var total int64
	for _, r := range s.Results {
		total += r.Records
	}
	return total
}

// New creates an Orchestrator. The fetcher is the source adapter shared by
// every stream; streams never run concurrently, so sharing is safe.
func New(registry *catalog.Registry, fetcher streams.Fetcher, cfg *config.Config, writer *singer.Writer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		fetcher:  fetcher,
		cfg:      cfg,
		writer:   writer,
		logger:   logger,
	}
}

// Stop requests a cooperative stop. The flag is checked between streams
// only: the in-flight stream finishes so its bookmark commit is never
// truncated.
func (o *Orchestrator) Stop() {
	o.stopping.Store(true)
}

// Run executes the sync. Stream-level failures are caught here, logged with
// the stream name and last committed bookmark, and collected into the
// summary; they never abort sibling streams. Only an empty selection or
// state corruption is fatal, and a fatal error is returned alongside
// whatever summary had accumulated.
func (o *Orchestrator) Run(ctx context.Context, user *catalog.Catalog, st *state.ReplicationState) (*Summary, error) {
	if st == nil {
		return nil, taperrors.New(taperrors.ErrorTypeStateCorruption, "no replication state supplied")
	}

	selected, unknown := catalog.Select(o.registry, user)
	if len(selected) == 0 {
		err := taperrors.New(taperrors.ErrorTypeConfig, "no streams selected")
		if len(unknown) > 0 {
			err = err.WithDetail("unknown_streams", unknown)
		}
		return nil, err
	}

	summary := &Summary{Results: make([]StreamResult, 0, len(selected)+len(unknown))}

	// A selected entry naming a stream the registry does not know is a
	// catalog mismatch: fail that entry so the typo shows up in the summary
	// instead of quietly shrinking the run
	for _, name := range unknown {
		_, err := o.registry.Definition(name)
		o.logger.Warn("user catalog selects unknown stream",
			zap.String("stream", name),
			zap.Error(err))
		summary.Results = append(summary.Results, StreamResult{Stream: name, Err: err})
	}

	for _, sel := range selected {
		if o.stopping.Load() || ctx.Err() != nil {
			o.logger.Warn("stop requested, skipping remaining streams",
				zap.String("stream", sel.Def.Name))
			summary.Results = append(summary.Results, StreamResult{Stream: sel.Def.Name, Skipped: true})
			continue
		}

		result := o.syncStream(ctx, sel, st)
		summary.Results = append(summary.Results, result)

		if result.Err != nil && !taperrors.StreamFatal(result.Err) {
			return summary, result.Err
		}
	}

	// Run-end STATE: cumulative, idempotent, emitted even when unchanged
	if err := o.writer.State(st); err != nil {
		return summary, err
	}

	return summary, nil
}

// syncStream runs one stream end to end: SCHEMA declaration, extraction,
// per-batch state forwarding.
func (o *Orchestrator) syncStream(ctx context.Context, sel *catalog.Selection, st *state.ReplicationState) (result StreamResult) {
	def := sel.Def
	start := time.Now()
	result.Stream = def.Name

	log := o.logger.With(zap.String("stream", def.Name))
	log.Info("starting stream sync",
		zap.String("replication_method", string(def.ReplicationMethod)))

	defer func() {
		result.Duration = time.Since(start)
		result.Bookmark = st.Bookmark(def.Name)
		metrics.ObserveSync(def.Name, result.Duration, result.Err != nil)

		if result.Err != nil {
			log.Error("stream sync failed",
				zap.Error(result.Err),
				zap.Int64("records", result.Records),
				zap.Any("last_committed_bookmark", result.Bookmark))
		} else {
			log.Info("stream sync finished",
				zap.Int64("records", result.Records),
				zap.Duration("duration", result.Duration))
		}
	}()

	var bookmarkProps []string
	if def.ReplicationKey != "" {
		bookmarkProps = []string{def.ReplicationKey}
	}
	if err := o.writer.Schema(def.Name, sel.JSONSchema(), def.PrimaryKeys, bookmarkProps); err != nil {
		result.Err = err
		return result
	}

	strm, err := streams.New(sel, o.fetcher, o.cfg, o.logger)
	if err != nil {
		result.Err = err
		return result
	}

	emitRecord := func(record map[string]interface{}) error {
		if err := o.writer.Record(def.Name, record); err != nil {
			return err
		}
		metrics.RecordsExtracted.WithLabelValues(def.Name).Inc()
		result.Records++
		return nil
	}
	emitState := func(st *state.ReplicationState) error {
		return o.writer.State(st)
	}

	result.Err = strm.Sync(ctx, st, emitRecord, emitState)
	return result
}
