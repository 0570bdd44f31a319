package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/history"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/metrics"
	"github.com/JonMunkholm/csvmerge/internal/profile"
	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

// ContextCheckInterval is how many rows are read between cancellation checks.
// Values below 1 check on every row.
var ContextCheckInterval = 1000

// historyTimeout bounds writing a run to history after the run itself ended.
const historyTimeout = 5 * time.Second

// Service runs merges. It is safe for concurrent use.
type Service struct {
	cfg      *config.Config
	profiles *profile.Set
	history  history.Store
	metrics  *metrics.Metrics
	limiter  *Limiter
}

// NewService wires a service. A nil profile set falls back to the built-in
// profiles, a nil store to in-memory history and nil metrics to a private
// registry.
func NewService(cfg *config.Config, profiles *profile.Set, store history.Store, m *metrics.Metrics) *Service {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if profiles == nil {
		profiles = profile.Builtin(cfg.Merge)
	}
	if store == nil {
		store = history.NewMemoryStore(cfg.Merge.HistorySize)
	}
	if m == nil {
		m = metrics.New()
	}

	return &Service{
		cfg:      cfg,
		profiles: profiles,
		history:  store,
		metrics:  m,
		limiter:  NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	}
}

// Merge folds req.Sources in order under the requested profile. The run is
// all-or-nothing: any source error fails it and no result is returned.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if len(req.Sources) == 0 {
		return nil, ErrNoSources
	}
	if limit := s.cfg.Upload.MaxFiles; limit > 0 && len(req.Sources) > limit {
		return nil, fmt.Errorf("%w: %d files, limit %d", ErrTooManyFiles, len(req.Sources), limit)
	}

	resolved, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooBusy) {
			s.metrics.RunRejected()
		}
		return nil, err
	}
	defer s.limiter.Release()

	runID := uuid.New()
	log := logging.WithFields(ctx,
		"run_id", runID,
		"profile", resolved.Name,
		"key_column", resolved.Options.KeyColumn,
		"sources", len(req.Sources),
	)

	done := s.metrics.RunStarted()
	defer done()

	started := time.Now()
	log.Info("merge started", "filter", resolved.Filter)

	result, stats, err := s.run(ctx, log, resolved, req.Sources)
	stats.Duration = time.Since(started)

	s.recordRun(ctx, runID, started, resolved, req.Sources, stats, err)

	if err != nil {
		log.Warn("merge failed", "error", err, "duration", stats.Duration)
		return nil, err
	}

	result.RunID = runID
	result.Stats = stats
	log.Info("merge finished",
		"rows_read", stats.Totals.Rows,
		"rows_accepted", stats.Totals.Accepted,
		"rows_out", stats.RowsOut,
		"columns", stats.Columns,
		"duration", stats.Duration,
	)
	return result, nil
}

// Preview runs a merge and returns its first PreviewRows rows.
func (s *Service) Preview(ctx context.Context, req MergeRequest) (*Preview, error) {
	result, err := s.Merge(ctx, req)
	if err != nil {
		return nil, err
	}
	p := result.Preview(s.cfg.Merge.PreviewRows)
	return &p, nil
}

// WriteCSV encodes a result with the dialect of its run.
func (s *Service) WriteCSV(w io.Writer, result *MergeResult) error {
	return tabular.Encode(w, result.Dialect, result.Columns, result.Records)
}

func (s *Service) resolve(req MergeRequest) (profile.Resolved, error) {
	p, ok := s.profiles.Get(req.Profile)
	if !ok {
		return profile.Resolved{}, fmt.Errorf("%w: %s", ErrUnknownProfile, req.Profile)
	}
	resolved, err := p.With(req.Overrides).Resolve()
	if err != nil {
		return profile.Resolved{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return resolved, nil
}

func (s *Service) run(ctx context.Context, log *slog.Logger, resolved profile.Resolved, sources []NamedSource) (*MergeResult, Stats, error) {
	if timeout := s.cfg.Upload.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stats Stats
	m := merge.New(resolved.Options)

	for _, src := range sources {
		st, err := s.mergeSource(ctx, m, resolved.Dialect, src)
		stats.add(st)
		s.metrics.AddSource(st.Bytes)
		if err != nil {
			return nil, stats, err
		}
		log.Debug("source merged",
			"source", st.Name,
			"bytes", st.Bytes,
			"rows", st.Rows,
			"accepted", st.Accepted,
			"no_key", st.NoKey,
			"filtered", st.Filtered,
			"skipped", st.Skipped,
		)
	}

	result := &MergeResult{
		Profile:   resolved.Name,
		KeyColumn: resolved.Options.KeyColumn,
		Filter:    resolved.Filter,
		Dialect:   resolved.Dialect,
		Columns:   m.Columns(),
		Records:   m.Records(),
	}
	stats.RowsOut = len(result.Records)
	stats.Columns = len(result.Columns)
	return result, stats, nil
}

// mergeSource decodes one source into m. Stats are valid even on error.
func (s *Service) mergeSource(ctx context.Context, m *merge.Merger, dialect tabular.Dialect, src NamedSource) (SourceStats, error) {
	st := SourceStats{Name: src.Name}
	if src.Reader == nil {
		return st, fmt.Errorf("%s: %w", src.Name, ErrUnreadableFile)
	}

	cr := newCountingReader(src.Reader, s.cfg.Upload.MaxFileSize, src.Name)
	dec := tabular.NewDecoder(cr, dialect)
	dec.Name = src.Name

	interval := max(ContextCheckInterval, 1)

	var err error
	for i := 0; ; i++ {
		if i%interval == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}

		var rec tabular.Record
		rec, err = dec.Next()
		if err != nil {
			break
		}

		st.Rows++
		switch m.Add(rec) {
		case merge.Accepted:
			st.Accepted++
		case merge.NoKey:
			st.NoKey++
		case merge.Filtered:
			st.Filtered++
		}
	}

	st.Skipped = dec.Skipped()
	st.Rows += st.Skipped
	st.Bytes = cr.BytesRead()
	if errors.Is(err, io.EOF) {
		return st, nil
	}
	return st, err
}

func (s *Service) recordRun(ctx context.Context, id uuid.UUID, started time.Time, resolved profile.Resolved, sources []NamedSource, stats Stats, runErr error) {
	status := history.StatusSucceeded
	if runErr != nil {
		status = history.StatusFailed
	}
	s.metrics.RunFinished(string(status), stats.Duration, stats.RowsOut)
	s.metrics.AddRows(metrics.OutcomeRead, stats.Totals.Rows)
	s.metrics.AddRows(metrics.OutcomeAccepted, stats.Totals.Accepted)
	s.metrics.AddRows(metrics.OutcomeNoKey, stats.Totals.NoKey)
	s.metrics.AddRows(metrics.OutcomeFiltered, stats.Totals.Filtered)
	s.metrics.AddRows(metrics.OutcomeSkipped, stats.Totals.Skipped)

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}

	run := history.Run{
		ID:        id,
		StartedAt: started.UTC(),
		Duration:  stats.Duration,
		Origin:    GetOriginFromContext(ctx),
		Profile:   resolved.Name,
		KeyColumn: resolved.Options.KeyColumn,
		Sources:   names,
		Bytes:     stats.Totals.Bytes,
		RowsRead:  stats.Totals.Rows,
		RowsKept:  stats.Totals.Accepted,
		RowsOut:   stats.RowsOut,
		Columns:   stats.Columns,
		Status:    status,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
	}
	if runErr != nil {
		run.Error = runErr.Error()
		run.ErrorCode = MapError(runErr).Code
	}

	// The request context may already be cancelled; history is written regardless.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if err := s.history.Record(hctx, run); err != nil {
		logging.FromContext(ctx).Error("record merge run", "run_id", id, "error", err)
	}
}

// Profiles lists the available merge profiles, default first.
func (s *Service) Profiles() []profile.Profile {
	return s.profiles.List()
}

// DefaultProfile returns the name used when a request names no profile.
func (s *Service) DefaultProfile() string {
	return s.profiles.DefaultName()
}

// Runs returns the most recent runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]history.Run, error) {
	return s.history.Recent(ctx, limit)
}

// Metrics returns the service's instrumentation.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Status returns the limiter state.
func (s *Service) Status() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight merges finish or ctx ends.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Close releases the history store.
func (s *Service) Close() {
	s.history.Close()
}
