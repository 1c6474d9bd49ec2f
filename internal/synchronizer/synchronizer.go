// Package synchronizer writes freshly computed athlete metrics and weeks-scraped counters into
// the metadata and master tables, keeping the two counters in lockstep.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/persistence/csvstore"
)

// TableStore reads and commits the two metadata tables.
type TableStore interface {
	ReadMetadata(context.Context) (*domain.Table, error)
	ReadMaster(context.Context) (*domain.Table, error)
	CommitMetadata(ctx context.Context, metadata, master *domain.Table) error
}

// Option configures optional behaviour for the Synchronizer.
type Option func(*Synchronizer)

// WithLogger overrides the logger used to report failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithCounterColumn sets the name of the weeks-scraped column.
func WithCounterColumn(column string) Option {
	return func(s *Synchronizer) {
		if column != "" {
			s.counterColumn = column
		}
	}
}

// Synchronizer is the only writer of metric and counter columns.
type Synchronizer struct {
	store         TableStore
	counterColumn string
	logger        *slog.Logger
}

// Result describes a committed synchronization.
type Result struct {
	Athletes    int
	Advance     int
	Divergences []domain.CounterDivergence
}

// New constructs a Synchronizer over store.
func New(store TableStore, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:         store,
		counterColumn: domain.DefaultWeeksScrapedColumn,
		logger:        slog.Default().With("component", "synchronizer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CounterColumn returns the configured weeks-scraped column name.
func (s *Synchronizer) CounterColumn() string {
	return s.counterColumn
}

var metricColumns = []string{
	domain.ColTotalRunDistanceKm,
	domain.ColAvgWeeklyRunMileageKm,
	domain.ColTotalRunHours,
	domain.ColAvgWeeklyRunHours,
	domain.ColTotalRideHours,
	domain.ColTotalSwimHours,
	domain.ColTotalOtherHours,
	domain.ColAvgRunPaceMinPerKm,
}

func metricCells(m domain.AthleteMetrics) []string {
	return []string{
		csvstore.FormatFloat(m.TotalRunDistanceKm),
		csvstore.FormatFloat(m.AvgWeeklyRunMileageKm),
		csvstore.FormatFloat(m.TotalRunHours),
		csvstore.FormatFloat(m.AvgWeeklyRunHours),
		csvstore.FormatFloat(m.TotalRideHours),
		csvstore.FormatFloat(m.TotalSwimHours),
		csvstore.FormatFloat(m.TotalOtherHours),
		csvstore.FormatOptionalFloat(m.AvgRunPaceMinPerKm),
	}
}

type target struct {
	metrics    domain.AthleteMetrics
	metaRows   []int
	masterRows []int
	counter    int64
}

// Apply overwrites the metric columns of every athlete in metrics and advances both counters by
// endWeek-startWeek. Every athlete is validated before anything is modified, and both tables
// are committed together. After the commit the counters are read back and compared.
func (s *Synchronizer) Apply(ctx context.Context, metrics []domain.AthleteMetrics, startWeek, endWeek int) (Result, error) {
	if endWeek < startWeek {
		return Result{}, fmt.Errorf("%w: %d..%d", domain.ErrInvalidWeekRange, startWeek, endWeek)
	}
	advance := int64(endWeek - startWeek)

	metadata, master, metaCounter, masterCounter, err := s.load(ctx)
	if err != nil {
		return Result{}, err
	}
	metadata, master = metadata.Clone(), master.Clone()

	targets := make([]target, 0, len(metrics))
	for _, m := range metrics {
		tg, err := s.prepare(metadata, master, metaCounter, masterCounter, m)
		if err != nil {
			s.logger.Error("metadata synchronization aborted before any change", "athlete_id", m.AthleteID, "error", err)
			return Result{}, err
		}
		targets = append(targets, tg)
	}

	cols := make([]int, len(metricColumns))
	for i, name := range metricColumns {
		cols[i] = metadata.EnsureColumn(name)
	}
	for _, tg := range targets {
		cells := metricCells(tg.metrics)
		updated := strconv.FormatInt(tg.counter+advance, 10)
		for _, row := range tg.metaRows {
			for i, col := range cols {
				metadata.Set(row, col, cells[i])
			}
			metadata.Set(row, metaCounter, updated)
		}
		for _, row := range tg.masterRows {
			master.Set(row, masterCounter, updated)
		}
		s.logger.Debug("staged athlete update", "athlete_id", tg.metrics.AthleteID, "weeks_scraped", updated)
	}

	if err := s.store.CommitMetadata(ctx, metadata, master); err != nil {
		s.logger.Error("commit metadata tables", "error", err)
		return Result{}, fmt.Errorf("commit metadata: %w", err)
	}

	ids := make([]int64, len(targets))
	for i, tg := range targets {
		ids[i] = tg.metrics.AthleteID
	}
	res := Result{Athletes: len(targets), Advance: int(advance)}
	res.Divergences, err = s.Verify(ctx, ids)
	if err != nil {
		return res, err
	}
	s.logger.Info("synchronized athlete metadata", "athletes", res.Athletes, "advance", advance)
	return res, nil
}

// Precheck reports the first athlete of ids that Apply would reject: one missing from either
// table or whose counters already disagree. Nothing is written.
func (s *Synchronizer) Precheck(ctx context.Context, ids []int64) error {
	metadata, master, metaCounter, masterCounter, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.prepare(metadata, master, metaCounter, masterCounter, domain.AthleteMetrics{AthleteID: id}); err != nil {
			s.logger.Error("athlete cannot be synchronized", "athlete_id", id, "error", err)
			return err
		}
	}
	return nil
}

func (s *Synchronizer) load(ctx context.Context) (metadata, master *domain.Table, metaCounter, masterCounter int, err error) {
	metadata, err = s.store.ReadMetadata(ctx)
	if err != nil {
		s.logger.Error("read metadata table", "error", err)
		return nil, nil, 0, 0, fmt.Errorf("read metadata: %w", err)
	}
	master, err = s.store.ReadMaster(ctx)
	if err != nil {
		s.logger.Error("read master table", "error", err)
		return nil, nil, 0, 0, fmt.Errorf("read master: %w", err)
	}
	metaCounter = metadata.Index(s.counterColumn)
	masterCounter = master.Index(s.counterColumn)
	if metaCounter < 0 || masterCounter < 0 {
		return nil, nil, 0, 0, fmt.Errorf("%w: %s", domain.ErrColumnMissing, s.counterColumn)
	}
	return metadata, master, metaCounter, masterCounter, nil
}

func (s *Synchronizer) prepare(metadata, master *domain.Table, metaCounter, masterCounter int, m domain.AthleteMetrics) (target, error) {
	metaRows, err := metadata.RowsByAthlete(m.AthleteID)
	if err != nil {
		return target{}, fmt.Errorf("metadata: %w", err)
	}
	if len(metaRows) == 0 {
		return target{}, fmt.Errorf("%w: %d in metadata table", domain.ErrAthleteNotFound, m.AthleteID)
	}
	masterRows, err := master.RowsByAthlete(m.AthleteID)
	if err != nil {
		return target{}, fmt.Errorf("master: %w", err)
	}
	if len(masterRows) == 0 {
		return target{}, fmt.Errorf("%w: %d in master table", domain.ErrAthleteNotFound, m.AthleteID)
	}

	counter, ok := domain.ParseIntCell(metadata.Value(metaRows[0], metaCounter))
	if !ok {
		return target{}, fmt.Errorf("%w: athlete %d has unreadable metadata counter %q",
			domain.ErrCounterDivergence, m.AthleteID, metadata.Value(metaRows[0], metaCounter))
	}
	check := func(table *domain.Table, rows []int, col int) error {
		for _, row := range rows {
			v, ok := domain.ParseIntCell(table.Value(row, col))
			if !ok || v != counter {
				return fmt.Errorf("%w: athlete %d has %q, metadata has %d",
					domain.ErrCounterDivergence, m.AthleteID, table.Value(row, col), counter)
			}
		}
		return nil
	}
	if err := check(metadata, metaRows, metaCounter); err != nil {
		return target{}, err
	}
	if err := check(master, masterRows, masterCounter); err != nil {
		return target{}, err
	}
	return target{metrics: m, metaRows: metaRows, masterRows: masterRows, counter: counter}, nil
}

// Verify re-reads both tables and reports athletes whose counters disagree. With no ids every
// athlete of the metadata table that also appears in the master table is checked.
func (s *Synchronizer) Verify(ctx context.Context, ids []int64) ([]domain.CounterDivergence, error) {
	metadata, err := s.store.ReadMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	master, err := s.store.ReadMaster(ctx)
	if err != nil {
		return nil, fmt.Errorf("read master: %w", err)
	}

	divergences, err := FindDivergences(metadata, master, s.counterColumn, ids)
	if err != nil {
		return divergences, err
	}
	if len(divergences) > 0 {
		for _, d := range divergences {
			s.logger.Error("weeks scraped counters diverged",
				"athlete_id", d.AthleteID, "metadata", d.Metadata, "master", d.Master)
		}
		return divergences, fmt.Errorf("%w: %d athletes", domain.ErrCounterDivergence, len(divergences))
	}
	return nil, nil
}

// FindDivergences compares the counter column of both tables for the given athletes, or for all
// athletes of the metadata table when ids is empty.
func FindDivergences(metadata, master *domain.Table, column string, ids []int64) ([]domain.CounterDivergence, error) {
	metaCol, masterCol := metadata.Index(column), master.Index(column)
	if metaCol < 0 || masterCol < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrColumnMissing, column)
	}
	idCol := metadata.Index(domain.ColAthleteID)
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrColumnMissing, domain.ColAthleteID)
	}

	explicit := len(ids) > 0
	if !explicit {
		seen := make(map[int64]struct{})
		for i := range metadata.Rows {
			id, ok := domain.ParseIntCell(metadata.Value(i, idCol))
			if !ok {
				continue
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	var out []domain.CounterDivergence
	var errs []error
	for _, id := range ids {
		metaRows, err := metadata.RowsByAthlete(id)
		if err != nil {
			return nil, err
		}
		masterRows, err := master.RowsByAthlete(id)
		if err != nil {
			return nil, err
		}
		if len(metaRows) == 0 || len(masterRows) == 0 {
			if explicit {
				errs = append(errs, fmt.Errorf("%w: %d", domain.ErrAthleteNotFound, id))
			}
			continue
		}

		want := metadata.Value(metaRows[0], metaCol)
		wantN, wantOK := domain.ParseIntCell(want)
		d := domain.CounterDivergence{AthleteID: id, Metadata: want}
		diverged := !wantOK
		for _, row := range metaRows[1:] {
			if n, ok := domain.ParseIntCell(metadata.Value(row, metaCol)); !ok || n != wantN {
				diverged = true
			}
		}
		for _, row := range masterRows {
			v := master.Value(row, masterCol)
			d.Master = append(d.Master, v)
			if n, ok := domain.ParseIntCell(v); !ok || n != wantN {
				diverged = true
			}
		}
		if diverged {
			out = append(out, d)
		}
	}
	return out, errors.Join(errs...)
}
