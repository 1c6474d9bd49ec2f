package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"example.com/endurance/internal/domain"
)

type stubReader struct {
	log domain.ActivityLog
	err error
}

func (s stubReader) ReadActivities(context.Context) (domain.ActivityLog, error) {
	return s.log, s.err
}

func ptr(v float64) *float64 { return &v }

func TestSummarizeRunScenario(t *testing.T) {
	activities := []domain.Activity{
		{AthleteID: 42, AthleteName: "X", Type: domain.TypeRun, DistanceKm: 5, DurationMin: 30},
		{AthleteID: 42, AthleteName: "X", Type: domain.TypeRun, DistanceKm: 0, DurationMin: 10},
		{AthleteID: 42, AthleteName: "X", Type: domain.TypeRun, DistanceKm: 10, DurationMin: 60},
		{AthleteID: 9, Type: domain.TypeRun, DistanceKm: 100, DurationMin: 500},
	}

	got, err := Summarize(activities, []int64{42}, 52)
	require.NoError(t, err)

	want := []domain.AthleteMetrics{{
		AthleteID:             42,
		AthleteName:           "X",
		TotalRunDistanceKm:    15,
		AvgWeeklyRunMileageKm: 0.29,
		TotalRunHours:         1.67,
		AvgWeeklyRunHours:     0.03,
		AvgRunPaceMinPerKm:    ptr(6.67),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizePivotsTypesAndSortsAthletes(t *testing.T) {
	activities := []domain.Activity{
		{AthleteID: 3, Type: domain.TypeRide, DurationMin: 90},
		{AthleteID: 3, Type: domain.TypeSwim, DurationMin: 30},
		{AthleteID: 3, Type: domain.TypeOther, DurationMin: 45},
		{AthleteID: 3, Type: "Walk", DurationMin: 600},
		{AthleteID: 1, Type: domain.TypeRun, DistanceKm: 20, DurationMin: 80},
	}

	got, err := Summarize(activities, []int64{3, 1}, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, int64(1), got[0].AthleteID)
	require.Equal(t, 5.0, got[0].AvgWeeklyRunMileageKm)
	require.Equal(t, 0.33, got[0].AvgWeeklyRunHours)
	require.Equal(t, 4.0, *got[0].AvgRunPaceMinPerKm)

	require.Equal(t, int64(3), got[1].AthleteID)
	require.Equal(t, 1.5, got[1].TotalRideHours)
	require.Equal(t, 0.5, got[1].TotalSwimHours)
	require.Equal(t, 0.75, got[1].TotalOtherHours)
	require.Zero(t, got[1].TotalRunDistanceKm)
}

func TestSummarizeZeroRunDistanceLeavesPaceMissing(t *testing.T) {
	activities := []domain.Activity{
		{AthleteID: 5, Type: domain.TypeRun, DistanceKm: 0, DurationMin: 25},
		{AthleteID: 5, Type: domain.TypeRide, DistanceKm: 40, DurationMin: 120},
	}

	got, err := Summarize(activities, []int64{5}, 10)
	require.NoError(t, err)
	require.Nil(t, got[0].AvgRunPaceMinPerKm)
	for _, v := range []float64{got[0].TotalRunHours, got[0].AvgWeeklyRunHours, got[0].TotalRideHours} {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestSummarizeRejectsBadInput(t *testing.T) {
	_, err := Summarize(nil, []int64{1}, 0)
	require.ErrorIs(t, err, domain.ErrInvalidDivisor)

	_, err = Summarize([]domain.Activity{{AthleteID: 2}}, []int64{1}, 5)
	require.ErrorIs(t, err, domain.ErrNoActivities)
}

func TestComputeReadsStore(t *testing.T) {
	quiet := WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reader := stubReader{log: domain.ActivityLog{Activities: []domain.Activity{
		{AthleteID: 8, Type: domain.TypeSwim, DurationMin: 60},
	}}}

	got, err := New(reader, quiet).Compute(context.Background(), []int64{8}, 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, got[0].TotalSwimHours)

	failing := stubReader{err: domain.ErrStoreUnavailable}
	_, err = New(failing, quiet).Compute(context.Background(), []int64{8}, 1)
	require.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}
