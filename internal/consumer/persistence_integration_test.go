//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/endurance/internal/events"
	"example.com/endurance/internal/persistence/postgres"
)

func TestPersistenceHandlerStoresRun(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	handler := NewPersistenceHandler(repo)
	payload, err := json.Marshal(events.IngestionCompleted{
		RunID:       "run-int",
		StartWeek:   45,
		EndWeek:     52,
		AthleteIDs:  []int64{42},
		Appended:    3,
		CompletedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	msg := Message{
		Topic:     "ingestion_events",
		EventType: events.TypeIngestionCompleted,
		Key:       "run-int",
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "run-int", runs[0].RunID)
	require.Equal(t, 3, runs[0].Appended)
}

func setupRepository(t *testing.T, ctx context.Context) *postgres.Repository {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("endurance"),
		postgrescontainer.WithUsername("endurance"),
		postgrescontainer.WithPassword("endurance"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := postgres.NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
