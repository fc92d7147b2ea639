// Package store records scan runs, their confirmed duplicate pairs and their
// skipped files in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eargollo/dupfind/internal/scan"
)

// ErrNotFound is returned when a scan id does not exist.
var ErrNotFound = errors.New("scan not found")

// pairBatchSize is the number of pairs inserted per prepared-statement batch.
const pairBatchSize = 500

// Store reads and writes scan history. It implements scan.Recorder.
type Store struct {
	db *sql.DB
}

// New wraps an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ scan.Recorder = (*Store)(nil)

// Scan is one row of scan history.
type Scan struct {
	ID          int64      `json:"id"           yaml:"id"`
	Root        string     `json:"root"         yaml:"root"`
	Pattern     string     `json:"pattern"      yaml:"pattern"`
	Hash        string     `json:"hash"         yaml:"hash"`
	MinFileSize int64      `json:"min_file_size" yaml:"min_file_size"`
	ChunkSize   int        `json:"chunk_size"   yaml:"chunk_size"`
	TriggeredBy string     `json:"triggered_by" yaml:"triggered_by"`
	Status      string     `json:"status"       yaml:"status"`
	StartedAt   time.Time  `json:"started_at"   yaml:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"  yaml:"finished_at"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	Stats       scan.Stats `json:"stats"        yaml:"stats"`
}

// Pair is a persisted confirmed pair.
type Pair struct {
	Position      int       `json:"position"`
	OriginalPath  string    `json:"original_path"`
	DuplicatePath string    `json:"duplicate_path"`
	Size          int64     `json:"size"`
	FileType      string    `json:"file_type"`
	OriginalMTime time.Time `json:"original_mtime"`
	DupMTime      time.Time `json:"duplicate_mtime"`
}

// Group is the N-way view of persisted pairs sharing an original.
type Group struct {
	OriginalPath   string   `json:"original_path"`
	DuplicatePaths []string `json:"duplicate_paths"`
	Size           int64    `json:"size"`
	Reclaimable    int64    `json:"reclaimable_bytes"`
}

// ScanError is a persisted skip.
type ScanError struct {
	Path       string    `json:"path"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BeginScan inserts a running scan row and returns its id.
func (s *Store) BeginScan(ctx context.Context, opts scan.Options, triggeredBy string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (root, pattern, hash, min_file_size, chunk_size, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		opts.Root, opts.Pattern, opts.Hash, opts.MinFileSize, opts.ChunkSize,
		triggeredBy, scan.StatusRunning, startedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	return res.LastInsertId()
}

// FinishScan stamps the scan row with its outcome and, when res is not nil,
// writes its pairs and skips, all in one transaction.
func (s *Store) FinishScan(ctx context.Context, id int64, status string, res *scan.Result, runErr error, finishedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var startedAt int64
	if err := tx.QueryRowContext(ctx, `SELECT started_at FROM scans WHERE id = ?`, id).Scan(&startedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get scan %d: %w", id, err)
	}

	var st scan.Stats
	if res != nil {
		st = res.Stats
	}
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE scans
		SET status = ?, finished_at = ?, error = ?,
		    files_discovered = ?, files_eligible = ?, files_fingerprinted = ?,
		    unique_size_skipped = ?, candidates = ?, confirmed = ?, collisions = ?,
		    skipped = ?, bytes_read = ?, reclaimable_bytes = ?, duration_ms = ?
		WHERE id = ?`,
		status, finishedAt.UnixMilli(), errText,
		st.FilesDiscovered, st.FilesEligible, st.FilesFingerprinted,
		st.UniqueSizeSkipped, st.Candidates, st.Confirmed, st.Collisions,
		st.Skipped, st.BytesRead, st.ReclaimableBytes, finishedAt.UnixMilli()-startedAt,
		id); err != nil {
		return fmt.Errorf("update scan %d: %w", id, err)
	}

	if res != nil {
		if err := writePairs(ctx, tx, id, res.Pairs); err != nil {
			return err
		}
		if err := writeErrors(ctx, tx, id, res.Skipped, finishedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// writePairs inserts pairs in batches, reusing one prepared statement.
func writePairs(ctx context.Context, tx *sql.Tx, scanID int64, pairs []scan.ConfirmedPair) error {
	if len(pairs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO duplicate_pairs
			(scan_id, position, original_path, duplicate_path, size, file_type, original_mtime, duplicate_mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert_pair: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(pairs); i += pairBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+pairBatchSize, len(pairs))
		for j, p := range pairs[i:end] {
			if _, err := stmt.ExecContext(ctx,
				scanID, i+j, p.Original.Path, p.Duplicate.Path, p.Duplicate.Size,
				string(p.Duplicate.Type), p.Original.Modified.Unix(), p.Duplicate.Modified.Unix(),
			); err != nil {
				return fmt.Errorf("insert pair %s: %w", p.Duplicate.Path, err)
			}
		}
	}
	return nil
}

func writeErrors(ctx context.Context, tx *sql.Tx, scanID int64, skips []scan.Skip, at time.Time) error {
	if len(skips) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_errors (scan_id, path, stage, error, occurred_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert_error: %w", err)
	}
	defer stmt.Close()
	for _, sk := range skips {
		if _, err := stmt.ExecContext(ctx, scanID, sk.Path, sk.Stage, sk.Message(), at.UnixMilli()); err != nil {
			return fmt.Errorf("insert error %s: %w", sk.Path, err)
		}
	}
	return nil
}

const scanColumns = `
	id, root, pattern, hash, min_file_size, chunk_size, triggered_by, status,
	started_at, finished_at, error,
	files_discovered, files_eligible, files_fingerprinted, unique_size_skipped,
	candidates, confirmed, collisions, skipped, bytes_read, reclaimable_bytes,
	duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (Scan, error) {
	var (
		sc         Scan
		startedAt  int64
		finishedAt sql.NullInt64
		errText    sql.NullString
		durationMs sql.NullInt64
	)
	err := row.Scan(
		&sc.ID, &sc.Root, &sc.Pattern, &sc.Hash, &sc.MinFileSize, &sc.ChunkSize, &sc.TriggeredBy, &sc.Status,
		&startedAt, &finishedAt, &errText,
		&sc.Stats.FilesDiscovered, &sc.Stats.FilesEligible, &sc.Stats.FilesFingerprinted, &sc.Stats.UniqueSizeSkipped,
		&sc.Stats.Candidates, &sc.Stats.Confirmed, &sc.Stats.Collisions, &sc.Stats.Skipped,
		&sc.Stats.BytesRead, &sc.Stats.ReclaimableBytes,
		&durationMs,
	)
	if err != nil {
		return Scan{}, err
	}
	sc.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		sc.FinishedAt = &t
	}
	sc.Error = errText.String
	if durationMs.Valid {
		sc.Stats.Elapsed = time.Duration(durationMs.Int64) * time.Millisecond
	}
	return sc, nil
}

// ListScans returns scans newest first and the total number of scans.
func (s *Store) ListScans(ctx context.Context, limit, offset int) ([]Scan, int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	items := []Scan{}
	for rows.Next() {
		sc, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list scans: scan row: %w", err)
		}
		items = append(items, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}
	return items, total, nil
}

// GetScan returns one scan or ErrNotFound.
func (s *Store) GetScan(ctx context.Context, id int64) (Scan, error) {
	sc, err := scanRow(s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNotFound
	}
	if err != nil {
		return Scan{}, fmt.Errorf("get scan %d: %w", id, err)
	}
	return sc, nil
}

// LastCompleted returns the most recently finished completed scan, or nil.
func (s *Store) LastCompleted(ctx context.Context) (*Scan, error) {
	sc, err := scanRow(s.db.QueryRowContext(ctx, `
		SELECT `+scanColumns+` FROM scans
		WHERE status = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT 1`, scan.StatusCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed scan: %w", err)
	}
	return &sc, nil
}

// ListPairs returns the pairs of a scan in their original order.
func (s *Store) ListPairs(ctx context.Context, id int64) ([]Pair, error) {
	if _, err := s.GetScan(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, original_path, duplicate_path, size, file_type, original_mtime, duplicate_mtime
		FROM duplicate_pairs WHERE scan_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list pairs %d: %w", id, err)
	}
	defer rows.Close()

	pairs := []Pair{}
	for rows.Next() {
		var p Pair
		var om, dm int64
		if err := rows.Scan(&p.Position, &p.OriginalPath, &p.DuplicatePath, &p.Size, &p.FileType, &om, &dm); err != nil {
			return nil, fmt.Errorf("list pairs %d: scan row: %w", id, err)
		}
		p.OriginalMTime = time.Unix(om, 0).UTC()
		p.DupMTime = time.Unix(dm, 0).UTC()
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ListGroups folds the pairs of a scan by original, in first-pair order.
func (s *Store) ListGroups(ctx context.Context, id int64) ([]Group, error) {
	pairs, err := s.ListPairs(ctx, id)
	if err != nil {
		return nil, err
	}
	return GroupPairs(pairs), nil
}

// GroupPairs folds persisted pairs by original path.
func GroupPairs(pairs []Pair) []Group {
	groups := []Group{}
	pos := make(map[string]int)
	for _, p := range pairs {
		i, ok := pos[p.OriginalPath]
		if !ok {
			i = len(groups)
			pos[p.OriginalPath] = i
			groups = append(groups, Group{OriginalPath: p.OriginalPath, Size: p.Size})
		}
		groups[i].DuplicatePaths = append(groups[i].DuplicatePaths, p.DuplicatePath)
		groups[i].Reclaimable += p.Size
	}
	return groups
}

// ListErrors returns the skips recorded for a scan.
func (s *Store) ListErrors(ctx context.Context, id int64) ([]ScanError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, stage, error, occurred_at
		FROM scan_errors WHERE scan_id = ?
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list errors %d: %w", id, err)
	}
	defer rows.Close()

	out := []ScanError{}
	for rows.Next() {
		var e ScanError
		var at int64
		if err := rows.Scan(&e.Path, &e.Stage, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("list errors %d: scan row: %w", id, err)
		}
		e.OccurredAt = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkStaleScansFailed marks scans left running by a previous process as
// failed and returns how many were updated.
func (s *Store) MarkStaleScansFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, finished_at = ?, error = ?
		WHERE status = ?`,
		scan.StatusFailed, time.Now().UnixMilli(), "interrupted", scan.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark stale scans: %w", err)
	}
	return res.RowsAffected()
}
