// Package mirror re-publishes the flat-file tables to the document mirror after each run.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/observability"
	"example.com/endurance/internal/persistence/postgres"
)

// Source reads the tables that are mirrored.
type Source interface {
	ReadActivityTable(context.Context) (*domain.Table, error)
	ReadMetadata(context.Context) (*domain.Table, error)
	ReadMaster(context.Context) (*domain.Table, error)
}

// Sink replaces one mirrored collection.
type Sink interface {
	ReplaceCollection(ctx context.Context, collection string, docs []postgres.Document, refreshedAt time.Time) (int, error)
}

// Option configures optional behaviour for the Refresher.
type Option func(*Refresher)

// WithLogger overrides the refresher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Refresher) {
		r.logger = logger
	}
}

// Refresher copies every table into its collection.
type Refresher struct {
	source Source
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Refresher.
func New(source Source, sink Sink, opts ...Option) *Refresher {
	r := &Refresher{
		source: source,
		sink:   sink,
		logger: slog.Default().With("component", "mirror"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type collection struct {
	name string
	read func(context.Context) (*domain.Table, error)
}

// Refresh mirrors the metadata, master and activity tables, in that order, and returns the
// document count per collection. It stops at the first failing collection.
func (r *Refresher) Refresh(ctx context.Context) (map[string]int, error) {
	at := r.now().UTC()
	counts := make(map[string]int, 3)
	for _, c := range []collection{
		{postgres.CollectionMetadata, r.source.ReadMetadata},
		{postgres.CollectionMaster, r.source.ReadMaster},
		{postgres.CollectionActivities, r.source.ReadActivityTable},
	} {
		table, err := c.read(ctx)
		if err != nil {
			return counts, fmt.Errorf("read %s: %w", c.name, err)
		}
		n, err := r.sink.ReplaceCollection(ctx, c.name, ToDocuments(table), at)
		if err != nil {
			return counts, fmt.Errorf("replace %s: %w", c.name, err)
		}
		counts[c.name] = n
	}

	observability.RecordMirrorRefresh(counts, at)
	r.logger.Info("mirror refreshed",
		postgres.CollectionMetadata, counts[postgres.CollectionMetadata],
		postgres.CollectionMaster, counts[postgres.CollectionMaster],
		postgres.CollectionActivities, counts[postgres.CollectionActivities],
	)
	return counts, nil
}

type kind int

const (
	kindInt kind = iota
	kindFloat
	kindText
)

// ToDocuments converts table rows into documents. Each column gets the narrowest type that
// fits all of its non-empty cells (integer, then float, then text); empty cells become nil.
func ToDocuments(table *domain.Table) []postgres.Document {
	kinds := make([]kind, len(table.Header))
	for col := range table.Header {
		kinds[col] = columnKind(table, col)
	}

	docs := make([]postgres.Document, 0, len(table.Rows))
	for i := range table.Rows {
		doc := make(postgres.Document, len(table.Header))
		for col, name := range table.Header {
			doc[name] = convert(table.Value(i, col), kinds[col])
		}
		docs = append(docs, doc)
	}
	return docs
}

func columnKind(table *domain.Table, col int) kind {
	k := kindInt
	for i := range table.Rows {
		v := strings.TrimSpace(table.Value(i, col))
		if v == "" {
			continue
		}
		if k == kindInt {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			k = kindFloat
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return kindText
		}
	}
	return k
}

func convert(value string, k kind) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	switch k {
	case kindInt:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(trimmed, 64)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	default:
		return value
	}
}
