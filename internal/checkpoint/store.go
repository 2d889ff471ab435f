package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"reelforge/internal/config"
)

// ErrLocked indicates another process holds the runs database.
var ErrLocked = errors.New("runs database is locked by another process")

// Store manages run and checkpoint persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open initializes or connects to the runs database and verifies the schema.
// An advisory file lock enforces the single-writer contract.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StagingDir, "runs.db")
	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire runs lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection and releases the lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateRun inserts a new run in running status.
func (s *Store) CreateRun(ctx context.Context, id, inputJSON string) (*Run, error) {
	if id == "" {
		return nil, errors.New("run id is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, status, current_stage, input_json, error_message, created_at, updated_at)
         VALUES (?, ?, '', ?, '', ?, ?)`,
		id,
		StatusRunning,
		inputJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches a run by identifier. Returns nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, status, current_stage, input_json, error_message, created_at, updated_at
         FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs ordered by creation time, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, status, current_stage, input_json, error_message, created_at, updated_at
         FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRun persists status, current stage, and error message for a run.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, current_stage = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		run.Status,
		run.CurrentStage,
		run.ErrorMessage,
		run.UpdatedAt.Format(time.RFC3339Nano),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Save durably records the artifact a stage produced. The write is
// committed before Save returns; the orchestrator treats this as a
// synchronization point before advancing to the next stage.
func (s *Store) Save(ctx context.Context, runID, stage string, artifact Artifact) error {
	if runID == "" || stage == "" {
		return errors.New("run id and stage are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT MAX(seq) FROM checkpoints WHERE run_id = ?`,
		runID,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("read checkpoint sequence: %w", err)
	}

	seq := int64(1)
	if maxSeq.Valid {
		seq = maxSeq.Int64 + 1
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO checkpoints (run_id, seq, stage, artifact_type, artifact_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		seq,
		stage,
		artifact.Type,
		string(artifact.Payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// LoadLatest returns the highest-sequence checkpoint per stage for a run,
// ordered by the sequence the stages completed in.
func (s *Store) LoadLatest(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT c.run_id, c.seq, c.stage, c.artifact_type, c.artifact_json, c.created_at
         FROM checkpoints c
         JOIN (
             SELECT stage, MAX(seq) AS max_seq FROM checkpoints WHERE run_id = ? GROUP BY stage
         ) latest ON c.stage = latest.stage AND c.seq = latest.max_seq
         WHERE c.run_id = ?
         ORDER BY c.seq`,
		runID,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record       Record
			artifactType string
			payloadRaw   string
			createdRaw   string
		)
		if err := rows.Scan(&record.RunID, &record.Seq, &record.Stage, &artifactType, &payloadRaw, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		record.Artifact.Type = artifactType
		record.Artifact.Payload = []byte(payloadRaw)
		record.CreatedAt = parseTimestamp(createdRaw)
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteRun removes a run and its checkpoints.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		statusRaw  string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&run.ID, &statusRaw, &run.CurrentStage, &run.InputJSON, &run.ErrorMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	status, ok := ParseStatus(statusRaw)
	if !ok {
		return nil, fmt.Errorf("unknown run status %q", statusRaw)
	}
	run.Status = status
	run.CreatedAt = parseTimestamp(createdRaw)
	run.UpdatedAt = parseTimestamp(updatedRaw)
	return &run, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
