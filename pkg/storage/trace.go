// Package storage persists evolution traces to SQLite: one champion
// snapshot per single-objective island per completed evolve wave.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ow97/archi/pkg/archipelago"
	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
)

// TraceStore is a sqlite-backed archipelago.Recorder.
type TraceStore struct {
	db *sql.DB
}

// Open creates or opens a trace database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*TraceStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &TraceStore{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	return s, nil
}

func (s *TraceStore) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS champions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wave INTEGER NOT NULL,
			island_index INTEGER NOT NULL,
			island_id TEXT NOT NULL,
			x TEXT NOT NULL,
			f TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_champions_island
			ON champions(island_index, wave);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// RecordWave implements archipelago.Recorder: it stores the champion of
// every single-objective island. Multi-objective islands are skipped.
func (s *TraceStore) RecordWave(ctx context.Context, a *archipelago.Archipelago, wave uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO champions (wave, island_index, island_id, x, f, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for i := 0; i < a.Size(); i++ {
		isl, err := a.At(i)
		if err != nil {
			return err
		}
		pop := isl.Population()
		if pop.Problem().Nobj() > 1 || pop.Len() == 0 {
			continue
		}
		best, err := pop.Champion(0)
		if err != nil {
			return err
		}
		xb, err := json.Marshal(pop.Xs()[best])
		if err != nil {
			return err
		}
		fb, err := json.Marshal(pop.Fs()[best])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, wave, i, isl.ID().String(), string(xb), string(fb), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ChampionRow is one persisted champion snapshot.
type ChampionRow struct {
	Wave        uint64
	IslandIndex int
	IslandID    string
	X           core.DecisionVector
	F           core.FitnessVector
	RecordedAt  time.Time
}

// Champions returns the stored snapshots of one island, oldest first.
func (s *TraceStore) Champions(ctx context.Context, islandIdx int) ([]ChampionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wave, island_index, island_id, x, f, recorded_at
		FROM champions WHERE island_index = ? ORDER BY wave, id`, islandIdx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChampionRow
	for rows.Next() {
		var r ChampionRow
		var xs, fs string
		var ts int64
		if err := rows.Scan(&r.Wave, &r.IslandIndex, &r.IslandID, &xs, &fs, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(xs), &r.X); err != nil {
			return nil, errors.Wrap(err, errors.ContractViolation, "corrupt champion decision vector")
		}
		if err := json.Unmarshal([]byte(fs), &r.F); err != nil {
			return nil, errors.Wrap(err, errors.ContractViolation, "corrupt champion fitness vector")
		}
		r.RecordedAt = time.Unix(0, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *TraceStore) Close() error {
	return s.db.Close()
}
