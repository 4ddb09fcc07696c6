package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

const createCyclesTable = `CREATE TABLE IF NOT EXISTS gc_cycles (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	schema          INTEGER NOT NULL,
	worker          INTEGER NOT NULL,
	cycle           INTEGER NOT NULL,
	before_count    INTEGER NOT NULL,
	collected       INTEGER NOT NULL,
	remaining       INTEGER NOT NULL,
	roots           INTEGER NOT NULL,
	intern_dropped  INTEGER NOT NULL,
	threshold       INTEGER NOT NULL,
	mark_ns         INTEGER NOT NULL,
	reconcile_ns    INTEGER NOT NULL,
	sweep_ns        INTEGER NOT NULL,
	at_unix_ns      INTEGER NOT NULL
)`

const insertCycle = `INSERT INTO gc_cycles (
	schema, worker, cycle, before_count, collected, remaining, roots,
	intern_dropped, threshold, mark_ns, reconcile_ns, sweep_ns, at_unix_ns
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectCycles = `SELECT
	schema, worker, cycle, before_count, collected, remaining, roots,
	intern_dropped, threshold, mark_ns, reconcile_ns, sweep_ns, at_unix_ns
FROM gc_cycles ORDER BY id`

type sqliteSink struct {
	db     *sql.DB
	insert *sql.Stmt
}

func newSQLiteSink(path string) (*sqliteSink, error) {
	// Open truncates, as for the stream formats.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createCyclesTable); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	stmt, err := db.Prepare(insertCycle)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &sqliteSink{db: db, insert: stmt}, nil
}

func (s *sqliteSink) write(rec *Record) error {
	_, err := s.insert.Exec(
		rec.Schema, rec.Worker, rec.Cycle, rec.Before, rec.Collected, rec.Remaining, rec.Roots,
		rec.InternDropped, rec.Threshold, rec.MarkNanos, rec.ReconcileNanos, rec.SweepNanos, rec.UnixNano,
	)
	return err
}

func (s *sqliteSink) close() error {
	return errors.Join(s.insert.Close(), s.db.Close())
}

func readSQLite(path string) (records []Record, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	rows, err := db.Query(selectCycles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.Schema, &rec.Worker, &rec.Cycle, &rec.Before, &rec.Collected, &rec.Remaining, &rec.Roots,
			&rec.InternDropped, &rec.Threshold, &rec.MarkNanos, &rec.ReconcileNanos, &rec.SweepNanos, &rec.UnixNano,
		); err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, len(records), err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
