package synchronizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/persistence/csvstore"
)

type memoryTables struct {
	metadata  *domain.Table
	master    *domain.Table
	commitErr error
	commits   int
	// applied after a successful commit to simulate an external writer
	afterCommit func(metadata, master *domain.Table)
}

func (m *memoryTables) ReadMetadata(context.Context) (*domain.Table, error) {
	return m.metadata.Clone(), nil
}

func (m *memoryTables) ReadMaster(context.Context) (*domain.Table, error) {
	return m.master.Clone(), nil
}

func (m *memoryTables) CommitMetadata(_ context.Context, metadata, master *domain.Table) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	m.metadata, m.master = metadata.Clone(), master.Clone()
	if m.afterCommit != nil {
		m.afterCommit(m.metadata, m.master)
	}
	return nil
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fixtureTables() *memoryTables {
	return &memoryTables{
		metadata: &domain.Table{
			Header: []string{"Athlete ID", "Athlete Name", "Total_Run_Distance_km", "2024 Weeks Scraped"},
			Rows: [][]string{
				{"1", "Ana Silva", "400.0", "45"},
				{"2", "Ben Okoro", "12.0", "45"},
			},
		},
		master: &domain.Table{
			Header: []string{"Athlete ID", "Event", "2024 Weeks Scraped"},
			Rows: [][]string{
				{"1", "Marathon", "45"},
				{"1", "Half Marathon", "45"},
				{"2", "10,000m", "45"},
			},
		},
	}
}

func pace(v float64) *float64 { return &v }

func TestApplyAdvancesBothCountersAndOverwritesMetrics(t *testing.T) {
	tables := fixtureTables()
	sync := New(tables, quiet())

	metrics := []domain.AthleteMetrics{{
		AthleteID:          1,
		TotalRunDistanceKm: 15,
		TotalRunHours:      1.67,
		AvgRunPaceMinPerKm: pace(6.67),
	}}

	res, err := sync.Apply(context.Background(), metrics, 45, 52)
	require.NoError(t, err)
	require.Equal(t, 1, res.Athletes)
	require.Equal(t, 7, res.Advance)
	require.Empty(t, res.Divergences)
	require.Equal(t, 1, tables.commits)

	meta := tables.metadata
	require.Equal(t, "15.0", meta.Value(0, meta.Index(domain.ColTotalRunDistanceKm)))
	require.Equal(t, "1.67", meta.Value(0, meta.Index(domain.ColTotalRunHours)))
	require.Equal(t, "6.67", meta.Value(0, meta.Index(domain.ColAvgRunPaceMinPerKm)))
	require.Equal(t, "0.0", meta.Value(0, meta.Index(domain.ColTotalSwimHours)))
	require.Equal(t, "52", meta.Value(0, meta.Index("2024 Weeks Scraped")))

	require.Equal(t, "45", meta.Value(1, meta.Index("2024 Weeks Scraped")), "untouched athlete keeps its counter")
	require.Equal(t, "12.0", meta.Value(1, meta.Index(domain.ColTotalRunDistanceKm)))

	require.Equal(t, []string{"1", "Marathon", "52"}, tables.master.Rows[0])
	require.Equal(t, []string{"1", "Half Marathon", "52"}, tables.master.Rows[1])
	require.Equal(t, []string{"2", "10,000m", "45"}, tables.master.Rows[2])
}

func TestApplyWritesMissingPaceAsEmptyCell(t *testing.T) {
	tables := fixtureTables()

	_, err := New(tables, quiet()).Apply(context.Background(), []domain.AthleteMetrics{{AthleteID: 2}}, 50, 51)
	require.NoError(t, err)
	require.Equal(t, "", tables.metadata.Value(1, tables.metadata.Index(domain.ColAvgRunPaceMinPerKm)))
	require.Equal(t, "46", tables.metadata.Value(1, 3))
}

func TestApplyValidatesBeforeMutating(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*memoryTables)
		metrics []domain.AthleteMetrics
		weeks   [2]int
		want    error
	}{
		"reversed range": {
			metrics: []domain.AthleteMetrics{{AthleteID: 1}},
			weeks:   [2]int{52, 45},
			want:    domain.ErrInvalidWeekRange,
		},
		"missing from metadata": {
			metrics: []domain.AthleteMetrics{{AthleteID: 1}, {AthleteID: 3}},
			weeks:   [2]int{45, 52},
			want:    domain.ErrAthleteNotFound,
		},
		"missing from master": {
			mutate:  func(m *memoryTables) { m.master.Rows = m.master.Rows[:2] },
			metrics: []domain.AthleteMetrics{{AthleteID: 2}},
			weeks:   [2]int{45, 52},
			want:    domain.ErrAthleteNotFound,
		},
		"counters already diverged": {
			mutate:  func(m *memoryTables) { m.master.Rows[1][2] = "44" },
			metrics: []domain.AthleteMetrics{{AthleteID: 1}},
			weeks:   [2]int{45, 52},
			want:    domain.ErrCounterDivergence,
		},
		"counter column absent": {
			mutate:  func(m *memoryTables) { m.master.Header[2] = "Weeks" },
			metrics: []domain.AthleteMetrics{{AthleteID: 1}},
			weeks:   [2]int{45, 52},
			want:    domain.ErrColumnMissing,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tables := fixtureTables()
			if tc.mutate != nil {
				tc.mutate(tables)
			}
			before := tables.metadata.Clone()

			_, err := New(tables, quiet()).Apply(context.Background(), tc.metrics, tc.weeks[0], tc.weeks[1])
			require.ErrorIs(t, err, tc.want)
			require.Zero(t, tables.commits)
			require.Equal(t, before, tables.metadata)
		})
	}
}

func TestPrecheckRejectsUnsyncableAthletesWithoutWriting(t *testing.T) {
	tables := fixtureTables()
	sync := New(tables, quiet())

	require.NoError(t, sync.Precheck(context.Background(), []int64{1, 2}))
	require.NoError(t, sync.Precheck(context.Background(), nil))
	require.ErrorIs(t, sync.Precheck(context.Background(), []int64{1, 3}), domain.ErrAthleteNotFound)

	tables.master.Rows[2][2] = "44"
	require.ErrorIs(t, sync.Precheck(context.Background(), []int64{2}), domain.ErrCounterDivergence)
	require.Zero(t, tables.commits)
}

func TestApplyReportsCommitFailure(t *testing.T) {
	tables := fixtureTables()
	tables.commitErr = errors.New("rename failed")

	_, err := New(tables, quiet()).Apply(context.Background(), []domain.AthleteMetrics{{AthleteID: 1}}, 45, 52)
	require.ErrorContains(t, err, "rename failed")
	require.Equal(t, "45", tables.metadata.Rows[0][3])
}

func TestApplyDetectsDivergenceAfterCommit(t *testing.T) {
	tables := fixtureTables()
	tables.afterCommit = func(_, master *domain.Table) { master.Rows[1][2] = "45" }

	res, err := New(tables, quiet()).Apply(context.Background(), []domain.AthleteMetrics{{AthleteID: 1}}, 45, 52)
	require.ErrorIs(t, err, domain.ErrCounterDivergence)
	require.Len(t, res.Divergences, 1)
	require.Equal(t, domain.CounterDivergence{AthleteID: 1, Metadata: "52", Master: []string{"52", "45"}}, res.Divergences[0])
}

func TestVerifyScansAllAthletes(t *testing.T) {
	tables := fixtureTables()
	tables.master.Rows[2][2] = "40"
	tables.metadata.Rows = append(tables.metadata.Rows, []string{"9", "No Ranking", "", "3"})

	divergences, err := New(tables, quiet()).Verify(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrCounterDivergence)
	require.Equal(t, []domain.CounterDivergence{{AthleteID: 2, Metadata: "45", Master: []string{"40"}}}, divergences)
}

func TestApplyWithCSVStore(t *testing.T) {
	dir := t.TempDir()
	paths := csvstore.Paths{
		Activities: filepath.Join(dir, "activities.csv"),
		Metadata:   filepath.Join(dir, "metadata.csv"),
		Master:     filepath.Join(dir, "master.csv"),
	}
	require.NoError(t, os.WriteFile(paths.Metadata, []byte("Athlete ID,Athlete Name,Weeks\n1,Ana Silva,45\n2,Ben,45\n"), 0o644))
	require.NoError(t, os.WriteFile(paths.Master, []byte("Athlete ID,Weeks\n1,45\n2,45\n1,45\n"), 0o644))

	store := csvstore.New(paths)
	sync := New(store, quiet(), WithCounterColumn("Weeks"))
	metrics := []domain.AthleteMetrics{{AthleteID: 1, TotalRunDistanceKm: 15}, {AthleteID: 2}}

	_, err := sync.Apply(context.Background(), metrics, 45, 52)
	require.NoError(t, err)

	master, err := store.ReadMaster(context.Background())
	require.NoError(t, err)
	for i := range master.Rows {
		require.Equal(t, "52", master.Value(i, 1))
	}
	metadata, err := store.ReadMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"1", "Ana Silva", "52", "15.0", "0.0", "0.0", "0.0", "0.0", "0.0", "0.0", ""}, metadata.Rows[0])

	divergences, err := sync.Verify(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, divergences)
}
