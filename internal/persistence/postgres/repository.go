package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/persistence"
)

//go:embed schema.sql
var schema string

// Mirrored collection names.
const (
	CollectionMetadata   = "athlete_metadata"
	CollectionMaster     = "master_iaaf"
	CollectionActivities = "activities"
)

// Document is one mirrored table row keyed by column name.
type Document = map[string]any

// Repository provides the Postgres-backed document mirror and the run log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the mirror tables when they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ReplaceCollection swaps the whole collection for docs inside one transaction, so readers see
// either the previous or the new generation.
func (r *Repository) ReplaceCollection(ctx context.Context, collection string, docs []Document, refreshedAt time.Time) (n int, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM mirror_documents WHERE collection=$1`, collection); err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(docs))
	for i, doc := range docs {
		body, marshalErr := json.Marshal(doc)
		if marshalErr != nil {
			err = fmt.Errorf("encode %s document %d: %w", collection, i, marshalErr)
			return 0, err
		}
		rows = append(rows, []any{
			collection,
			i,
			athleteID(doc),
			nullIfEmpty(strings.ToLower(strings.TrimSpace(textField(doc, domain.ColAthleteName)))),
			textField(doc, domain.ColStartDate),
			body,
			refreshedAt,
		})
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"mirror_documents"},
		[]string{"collection", "position", "athlete_id", "athlete_name_lower", "start_date", "document", "refreshed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(copied), nil
}

// FindAthlete returns the metadata document of the athlete, or nil when there is none.
func (r *Repository) FindAthlete(ctx context.Context, id int64) (Document, error) {
	const query = `SELECT document FROM mirror_documents
        WHERE collection=$1 AND athlete_id=$2 ORDER BY position LIMIT 1`

	var body []byte
	if err := r.pool.QueryRow(ctx, query, CollectionMetadata, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDocument(body)
}

// ActivityFilter narrows ListActivities to one athlete, by identifier or by name.
type ActivityFilter struct {
	AthleteID   *int64
	AthleteName string
}

// ListActivities returns mirrored activities newest first.
func (r *Repository) ListActivities(ctx context.Context, filter ActivityFilter, cursor *persistence.Cursor, limit int) ([]Document, *persistence.Cursor, error) {
	args := []any{CollectionActivities, limit}
	query := `SELECT position, start_date, document FROM mirror_documents WHERE collection=$1`

	if filter.AthleteID != nil {
		args = append(args, *filter.AthleteID)
		query += fmt.Sprintf(` AND athlete_id=$%d`, len(args))
	}
	if name := strings.ToLower(strings.TrimSpace(filter.AthleteName)); name != "" {
		args = append(args, name)
		query += fmt.Sprintf(` AND athlete_name_lower=$%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.StartDate, cursor.Position)
		query += fmt.Sprintf(` AND (start_date, position) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY start_date DESC, position DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]Document, 0, limit)
	var last persistence.Cursor
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&last.Position, &last.StartDate, &body); err != nil {
			return nil, nil, err
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *persistence.Cursor
	if limit > 0 && len(results) == limit {
		next = &last
	}
	return results, next, nil
}

// RunRecord is one completed pipeline run as announced on the event bus.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	EventType   string    `json:"event_type"`
	StartWeek   int       `json:"start_week"`
	EndWeek     int       `json:"end_week"`
	AthleteIDs  []int64   `json:"athlete_ids"`
	Appended    int       `json:"appended"`
	Duplicates  int       `json:"duplicates"`
	CompletedAt time.Time `json:"completed_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

// RecordRun stores a run. Redelivered events for a known run ID are ignored.
func (r *Repository) RecordRun(ctx context.Context, run RunRecord) error {
	const stmt = `INSERT INTO pipeline_runs (run_id, event_type, start_week, end_week, athlete_ids, appended, duplicates, completed_at, received_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (run_id) DO NOTHING`

	ids := run.AthleteIDs
	if ids == nil {
		ids = []int64{}
	}
	receivedAt := run.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, stmt,
		run.RunID,
		run.EventType,
		run.StartWeek,
		run.EndWeek,
		ids,
		run.Appended,
		run.Duplicates,
		run.CompletedAt,
		receivedAt,
	)
	return err
}

// ListRuns returns the most recently completed runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	const query = `SELECT run_id, event_type, start_week, end_week, athlete_ids, appended, duplicates, completed_at, received_at
        FROM pipeline_runs ORDER BY completed_at DESC, run_id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.RunID, &run.EventType, &run.StartWeek, &run.EndWeek, &run.AthleteIDs, &run.Appended, &run.Duplicates, &run.CompletedAt, &run.ReceivedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func decodeDocument(body []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func athleteID(doc Document) any {
	switch v := doc[domain.ColAthleteID].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 9e18 {
			return int64(v)
		}
	case string:
		if id, ok := domain.ParseIntCell(v); ok {
			return id
		}
	}
	return nil
}

func textField(doc Document, key string) string {
	switch v := doc[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
