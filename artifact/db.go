package artifact

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	started TEXT NOT NULL,
	source  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS artifacts (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	stored  TEXT NOT NULL,
	content BLOB NOT NULL,
	PRIMARY KEY (run_id, name)
);
`

// Run describes single conversion run recorded in database.
type Run struct {
	ID        string
	Started   time.Time
	Source    string
	Artifacts int
}

// DB keeps artifacts of many runs in SQLite database, rows are keyed by run
// id. Run ids are time ordered, so the latest run sorts last.
type DB struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	run  string
}

func OpenDB(path string) (*DB, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open artifacts database: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare artifacts database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Begin records new run, subsequent Store calls belong to it.
func (db *DB) Begin(ctx context.Context, runID, source string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	defer db.conn.SetInterrupt(db.conn.SetInterrupt(ctx.Done()))

	err := sqlitex.Execute(db.conn, `INSERT INTO runs (id, started, source) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{runID, time.Now().UTC().Format(time.RFC3339Nano), source}})
	if err != nil {
		return fmt.Errorf("unable to record run %s: %w", runID, err)
	}
	db.run = runID
	return nil
}

func (db *DB) Store(ctx context.Context, name string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.run == "" {
		return fmt.Errorf("unable to store artifact %s: no run started", name)
	}
	defer db.conn.SetInterrupt(db.conn.SetInterrupt(ctx.Done()))

	err = sqlitex.Execute(db.conn, `INSERT OR REPLACE INTO artifacts (run_id, name, stored, content) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{db.run, name, time.Now().UTC().Format(time.RFC3339Nano), data}})
	if err != nil {
		return fmt.Errorf("unable to store artifact %s: %w", name, err)
	}
	return nil
}

// Runs lists recorded runs, oldest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	defer db.conn.SetInterrupt(db.conn.SetInterrupt(ctx.Done()))

	var runs []Run
	err := sqlitex.Execute(db.conn, `
		SELECT r.id, r.started, r.source, COUNT(a.name)
		FROM runs r LEFT JOIN artifacts a ON a.run_id = r.id
		GROUP BY r.id ORDER BY r.id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			started, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(1))
			if err != nil {
				return fmt.Errorf("run %s: bad start time: %w", stmt.ColumnText(0), err)
			}
			runs = append(runs, Run{
				ID:        stmt.ColumnText(0),
				Started:   started,
				Source:    stmt.ColumnText(2),
				Artifacts: int(stmt.ColumnInt64(3)),
			})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("unable to list runs: %w", err)
	}
	return runs, nil
}

// Names lists artifacts stored by run.
func (db *DB) Names(ctx context.Context, runID string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	defer db.conn.SetInterrupt(db.conn.SetInterrupt(ctx.Done()))

	var names []string
	err := sqlitex.Execute(db.conn, `SELECT name FROM artifacts WHERE run_id = ? ORDER BY name`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				names = append(names, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to list artifacts of run %s: %w", runID, err)
	}
	return names, nil
}

// Load returns content of stored artifact.
func (db *DB) Load(ctx context.Context, runID, name string) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	defer db.conn.SetInterrupt(db.conn.SetInterrupt(ctx.Done()))

	var (
		data  []byte
		found bool
	)
	err := sqlitex.Execute(db.conn, `SELECT content FROM artifacts WHERE run_id = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{runID, name},
			ResultFunc: func(stmt *sqlite.Stmt) (err error) {
				found = true
				data, err = io.ReadAll(stmt.ColumnReader(0))
				return err
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to load artifact %s of run %s: %w", name, runID, err)
	}
	if !found {
		return nil, fmt.Errorf("artifact %s of run %s not found", name, runID)
	}
	return data, nil
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}
