// Package csvstore is the flat-file storage layer: the cumulative activity log, the athlete
// metadata table and the master rankings table, each a CSV file at an explicit path.
package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"example.com/endurance/internal/domain"
)

// Paths locates the three tables on disk.
type Paths struct {
	Activities string
	Metadata   string
	Master     string
}

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithLogger overrides the logger used to report storage events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store reads and writes the pipeline tables. It assumes a single writer per run.
type Store struct {
	paths  Paths
	logger *slog.Logger

	// swapped in tests to simulate disk failures
	syncFile func(*os.File) error
	rename   func(oldpath, newpath string) error
}

// New constructs a Store over the given paths.
func New(paths Paths, opts ...Option) *Store {
	s := &Store{
		paths:    paths,
		logger:   slog.Default().With("component", "csvstore"),
		syncFile: (*os.File).Sync,
		rename:   os.Rename,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the configured table locations.
func (s *Store) Paths() Paths {
	return s.paths
}

// ReadActivities loads the full cumulative activity log.
func (s *Store) ReadActivities(ctx context.Context) (domain.ActivityLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.ActivityLog{}, err
	}
	table, err := ReadTable(s.paths.Activities)
	if err != nil {
		return domain.ActivityLog{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return DecodeActivities(table), nil
}

// ReadActivityTable loads the activity log without decoding rows.
func (s *Store) ReadActivityTable(ctx context.Context) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadTable(s.paths.Activities)
}

// ReadMetadata loads the athlete metadata table.
func (s *Store) ReadMetadata(ctx context.Context) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadTable(s.paths.Metadata)
}

// ReadMaster loads the master rankings table.
func (s *Store) ReadMaster(ctx context.Context) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadTable(s.paths.Master)
}

// AppendActivities appends rows to the activity log without re-emitting the header. The batch
// is rendered in memory first; if the write or the sync fails the file is truncated back to its
// previous size.
func (s *Store) AppendActivities(ctx context.Context, activities []domain.Activity) (err error) {
	if len(activities) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, a := range activities {
		if err := w.Write(EncodeActivity(a)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.paths.Activities, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	payload := buf.Bytes()
	if size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			payload = append([]byte{'\n'}, payload...)
		}
	}

	if _, err = f.Write(payload); err == nil {
		err = s.syncFile(f)
	}
	if err != nil {
		if truncErr := f.Truncate(size); truncErr != nil {
			s.logger.Error("rollback of partial append failed", "path", s.paths.Activities, "size", size, "error", truncErr)
			return errors.Join(err, truncErr)
		}
		return err
	}

	s.logger.Info("appended activities", "path", s.paths.Activities, "rows", len(activities))
	return nil
}

// CommitMetadata replaces both metadata tables. Each is staged to a temp file next to its target
// and synced before any rename happens; if the master rename fails the metadata file is put back.
func (s *Store) CommitMetadata(ctx context.Context, metadata, master *domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	original, err := os.ReadFile(s.paths.Metadata)
	if err != nil {
		return err
	}

	metaTmp, err := s.stage(s.paths.Metadata, metadata)
	if err != nil {
		return fmt.Errorf("stage metadata: %w", err)
	}
	masterTmp, err := s.stage(s.paths.Master, master)
	if err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("stage master: %w", err)
	}

	if err := s.rename(metaTmp, s.paths.Metadata); err != nil {
		_ = os.Remove(metaTmp)
		_ = os.Remove(masterTmp)
		return fmt.Errorf("commit metadata: %w", err)
	}
	if err := s.rename(masterTmp, s.paths.Master); err != nil {
		_ = os.Remove(masterTmp)
		restoreErr := s.restore(s.paths.Metadata, original)
		if restoreErr != nil {
			s.logger.Error("metadata restore failed after master commit error", "path", s.paths.Metadata, "error", restoreErr)
		}
		return errors.Join(fmt.Errorf("commit master: %w", err), restoreErr)
	}
	return nil
}

func (s *Store) stage(target string, table *domain.Table) (string, error) {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := tmp.Name()

	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}

	if info, err := os.Stat(target); err == nil {
		if err := tmp.Chmod(info.Mode().Perm()); err != nil {
			return fail(err)
		}
	}
	if err := WriteTable(tmp, table); err != nil {
		return fail(err)
	}
	if err := s.syncFile(tmp); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func (s *Store) restore(target string, content []byte) error {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.restore")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// ReadTable parses a CSV file with a header row.
func ReadTable(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeTable(f)
}

// DecodeTable parses CSV text with a header row. Ragged rows are tolerated.
func DecodeTable(r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("table has no header")
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return &domain.Table{Header: header, Rows: rows}, nil
}

// WriteTable renders the table as CSV with its header.
func WriteTable(w io.Writer, table *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ReadRawBatch loads a scraper output file as a loosely typed batch.
func ReadRawBatch(path string) (domain.RawBatch, error) {
	table, err := ReadTable(path)
	if err != nil {
		return domain.RawBatch{}, err
	}
	return RawBatchFromTable(table), nil
}

// RawBatchFromTable keys every row by column name.
func RawBatchFromTable(table *domain.Table) domain.RawBatch {
	batch := domain.RawBatch{
		Columns: append([]string(nil), table.Header...),
		Rows:    make([]domain.RawRow, 0, len(table.Rows)),
	}
	for i := range table.Rows {
		row := make(domain.RawRow, len(table.Header))
		for col, name := range table.Header {
			row[name] = table.Value(i, col)
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch
}

// TableFromRawBatch lays a batch out as a table in the batch's column order.
func TableFromRawBatch(batch domain.RawBatch) *domain.Table {
	table := &domain.Table{
		Header: append([]string(nil), batch.Columns...),
		Rows:   make([][]string, 0, len(batch.Rows)),
	}
	for _, raw := range batch.Rows {
		row := make([]string, len(batch.Columns))
		for col, name := range batch.Columns {
			row[col] = raw[name]
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
