// Package pipeline runs the reconciliation stages in order: clean, append, aggregate and
// synchronize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"example.com/endurance/internal/aggregator"
	"example.com/endurance/internal/cleaner"
	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/events"
	"example.com/endurance/internal/observability"
	"example.com/endurance/internal/synchronizer"
	"example.com/endurance/internal/updater"
)

// Store is the storage collaborator the pipeline runs against.
type Store interface {
	ReadActivities(context.Context) (domain.ActivityLog, error)
	AppendActivities(context.Context, []domain.Activity) error
	ReadMetadata(context.Context) (*domain.Table, error)
	ReadMaster(context.Context) (*domain.Table, error)
	CommitMetadata(ctx context.Context, metadata, master *domain.Table) error
}

// Publisher announces completed runs.
type Publisher interface {
	PublishIngestion(context.Context, events.IngestionCompleted) error
	PublishRecalculation(context.Context, events.RecalculationCompleted) error
}

// Option configures optional behaviour for the Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the logger passed to every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPublisher sets the event publisher. Without one, runs are not announced.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = pub
	}
}

// WithCounterColumn sets the weeks-scraped column name.
func WithCounterColumn(column string) Option {
	return func(p *Pipeline) {
		p.counterColumn = column
	}
}

// Pipeline wires the stages over one store.
type Pipeline struct {
	store         Store
	publisher     Publisher
	logger        *slog.Logger
	counterColumn string
	now           func() time.Time
	newRunID      func() string

	cleaner      *cleaner.Cleaner
	updater      *updater.Updater
	aggregator   *aggregator.Aggregator
	synchronizer *synchronizer.Synchronizer
}

// New constructs a Pipeline.
func New(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		logger:        slog.Default(),
		counterColumn: domain.DefaultWeeksScrapedColumn,
		now:           time.Now,
		newRunID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}

	p.cleaner = cleaner.New(cleaner.WithLogger(p.logger.With("component", "cleaner")))
	p.updater = updater.New(store, updater.WithLogger(p.logger.With("component", "updater")))
	p.aggregator = aggregator.New(store, aggregator.WithLogger(p.logger.With("component", "aggregator")))
	p.synchronizer = synchronizer.New(store,
		synchronizer.WithLogger(p.logger.With("component", "synchronizer")),
		synchronizer.WithCounterColumn(p.counterColumn),
	)
	return p
}

// Request parameterizes an ingestion run. AthleteIDs narrows the aggregation; when empty every
// athlete of the scraped batch is used.
type Request struct {
	StartWeek  int
	EndWeek    int
	AthleteIDs []int64
}

func (r Request) validate() error {
	if r.EndWeek < r.StartWeek {
		return fmt.Errorf("%w: %d..%d", domain.ErrInvalidWeekRange, r.StartWeek, r.EndWeek)
	}
	if r.EndWeek <= 0 {
		return fmt.Errorf("%w: end week %d", domain.ErrInvalidDivisor, r.EndWeek)
	}
	return nil
}

// Report summarizes a run for operators.
type Report struct {
	RunID       string
	Operation   string
	Cleaned     int
	Appended    int
	Duplicates  int
	FirstSerial int64
	LastSerial  int64
	Metrics     []domain.AthleteMetrics
	Advance     int
	Divergences []domain.CounterDivergence
	Started     time.Time
	Finished    time.Time
}

// Ingest runs one ingestion. Every target athlete must be present in both metadata tables with
// matching counters before anything is appended. When no new unique activity survives
// deduplication the run stops before aggregation, so counters only advance when data was
// actually added.
func (p *Pipeline) Ingest(ctx context.Context, req Request, batch domain.RawBatch) (report *Report, err error) {
	report = p.newReport("ingest")
	logger := p.logger.With("run_id", report.RunID, "operation", report.Operation)
	defer func() { p.finish(report, err) }()

	if err := req.validate(); err != nil {
		return report, err
	}
	if len(batch.Rows) == 0 {
		logger.Info("scrape returned no rows")
		return report, nil
	}

	existing, err := p.store.ReadActivities(ctx)
	if err != nil {
		logger.Error("read activity store", "error", err)
		return report, err
	}

	cleaned, err := p.cleaner.Clean(batch, existing)
	if err != nil {
		return report, fmt.Errorf("clean: %w", err)
	}
	report.Cleaned = len(cleaned)

	targets := req.AthleteIDs
	if len(targets) == 0 {
		targets = scrapedAthletes(cleaned, batch.AthleteIDs)
	}
	if err := p.synchronizer.Precheck(ctx, targets); err != nil {
		return report, fmt.Errorf("synchronize precheck: %w", err)
	}

	res, err := p.updater.Apply(ctx, existing, cleaned)
	if err != nil {
		return report, fmt.Errorf("update store: %w", err)
	}
	report.Appended, report.Duplicates = res.Appended, res.Duplicates
	report.FirstSerial, report.LastSerial = res.FirstSerial, res.LastSerial
	observability.RecordIngestion(res.Appended, res.Duplicates)
	if res.Appended == 0 {
		return report, nil
	}

	if err := p.reconcile(ctx, report, targets, req.StartWeek, req.EndWeek); err != nil {
		return report, err
	}

	if p.publisher != nil {
		ev := events.IngestionCompleted{
			RunID:       report.RunID,
			StartWeek:   req.StartWeek,
			EndWeek:     req.EndWeek,
			AthleteIDs:  targets,
			Appended:    report.Appended,
			Duplicates:  report.Duplicates,
			FirstSerial: report.FirstSerial,
			LastSerial:  report.LastSerial,
			CompletedAt: p.now().UTC(),
		}
		if pubErr := p.publisher.PublishIngestion(ctx, ev); pubErr != nil {
			logger.Warn("ingestion event not published", "error", pubErr)
		}
	}
	logger.Info("ingestion complete", "appended", report.Appended, "athletes", len(report.Metrics))
	return report, nil
}

// Recalculate recomputes and writes metrics for athletes without ingesting new activities,
// advancing their counters by endWeek-startWeek.
func (p *Pipeline) Recalculate(ctx context.Context, athleteIDs []int64, startWeek, endWeek int) (report *Report, err error) {
	report = p.newReport("recalculate")
	defer func() { p.finish(report, err) }()

	if err := (Request{StartWeek: startWeek, EndWeek: endWeek}).validate(); err != nil {
		return report, err
	}
	if len(athleteIDs) == 0 {
		return report, fmt.Errorf("%w: no athletes requested", domain.ErrNoActivities)
	}
	if err := p.reconcile(ctx, report, athleteIDs, startWeek, endWeek); err != nil {
		return report, err
	}

	if p.publisher != nil {
		ev := events.RecalculationCompleted{
			RunID:       report.RunID,
			StartWeek:   startWeek,
			EndWeek:     endWeek,
			AthleteIDs:  athleteIDs,
			CompletedAt: p.now().UTC(),
		}
		if pubErr := p.publisher.PublishRecalculation(ctx, ev); pubErr != nil {
			p.logger.Warn("recalculation event not published", "run_id", report.RunID, "error", pubErr)
		}
	}
	return report, nil
}

// Verify scans both metadata tables for athletes whose counters disagree.
func (p *Pipeline) Verify(ctx context.Context) (report *Report, err error) {
	report = p.newReport("verify")
	defer func() { p.finish(report, err) }()

	report.Divergences, err = p.synchronizer.Verify(ctx, nil)
	observability.RecordDivergences(len(report.Divergences))
	return report, err
}

func (p *Pipeline) reconcile(ctx context.Context, report *Report, targets []int64, startWeek, endWeek int) error {
	metrics, err := p.aggregator.Compute(ctx, targets, endWeek)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	report.Metrics = metrics

	res, err := p.synchronizer.Apply(ctx, metrics, startWeek, endWeek)
	report.Advance = res.Advance
	report.Divergences = res.Divergences
	observability.RecordDivergences(len(res.Divergences))
	if err != nil {
		return fmt.Errorf("synchronize: %w", err)
	}
	observability.RecordSynchronized(res.Athletes)
	return nil
}

func (p *Pipeline) newReport(operation string) *Report {
	return &Report{RunID: p.newRunID(), Operation: operation, Started: p.now()}
}

func (p *Pipeline) finish(report *Report, err error) {
	report.Finished = p.now()
	observability.RecordRun(report.Operation, report.Started, err)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}
		p.logger.Log(context.Background(), level, "run failed",
			"run_id", report.RunID, "operation", report.Operation, "error", err)
	}
}

// scrapedAthletes returns every athlete of the cleaned batch, including those whose rows are all
// already stored, plus the athletes the scrape listed without rows.
func scrapedAthletes(cleaned []domain.Activity, listed []int64) []int64 {
	ids := make([]int64, 0, len(cleaned)+len(listed))
	for _, a := range cleaned {
		ids = append(ids, a.AthleteID)
	}
	ids = append(ids, listed...)
	slices.Sort(ids)
	return slices.Compact(ids)
}
