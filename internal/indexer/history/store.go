// Package history records completed pipeline stages in PostgreSQL so past
// builds can be listed with their shape and checksum.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer"
)

const schema = `CREATE TABLE IF NOT EXISTS index_builds (
	id          UUID PRIMARY KEY,
	stage       TEXT NOT NULL,
	corpus_dir  TEXT NOT NULL DEFAULT '',
	output_dir  TEXT NOT NULL,
	documents   INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	terms       INTEGER NOT NULL,
	postings    BIGINT NOT NULL,
	bytes       BIGINT NOT NULL,
	checksum    BIGINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
)`

const schemaIndex = `CREATE INDEX IF NOT EXISTS idx_index_builds_started_at ON index_builds (started_at DESC)`

type migrator interface {
	Migrate(ctx context.Context, statements ...string) error
}

// Store persists BuildRuns. It satisfies indexer.Notifier.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "history"),
	}
}

// EnsureSchema creates the index_builds table if it does not exist.
func EnsureSchema(ctx context.Context, m migrator) error {
	return m.Migrate(ctx, schema, schemaIndex)
}

func (s *Store) Notify(ctx context.Context, run indexer.BuildRun) error {
	return s.Record(ctx, run)
}

func (s *Store) Record(ctx context.Context, run indexer.BuildRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_builds
			(id, stage, corpus_dir, output_dir, documents, skipped, terms, postings, bytes, checksum, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.Stage, run.CorpusDir, run.OutputDir,
		run.Documents, run.Skipped, run.Terms, run.Postings, run.Bytes,
		int64(run.Checksum), run.StartedAt, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording build %s: %w", run.ID, err)
	}
	s.logger.Debug("build recorded", "run_id", run.ID, "stage", run.Stage)
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]indexer.BuildRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stage, corpus_dir, output_dir, documents, skipped, terms, postings, bytes, checksum, started_at, duration_ms
		FROM index_builds
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying build history: %w", err)
	}
	defer rows.Close()

	var runs []indexer.BuildRun
	for rows.Next() {
		var (
			run        indexer.BuildRun
			checksum   int64
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.Stage, &run.CorpusDir, &run.OutputDir,
			&run.Documents, &run.Skipped, &run.Terms, &run.Postings, &run.Bytes,
			&checksum, &run.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning build history: %w", err)
		}
		run.Checksum = uint32(checksum)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating build history: %w", err)
	}
	return runs, nil
}
