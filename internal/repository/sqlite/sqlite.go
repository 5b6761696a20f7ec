package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codescape/internal/domain"
	"codescape/internal/repository"

	_ "modernc.org/sqlite"
)

// MaxGenerations is how many generation records are kept
const MaxGenerations = 200

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository. ":memory:" opens a private in-memory
// database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pins (
		scope TEXT NOT NULL DEFAULT '',
		node_id TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (scope, node_id)
	);

	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scope TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		fingerprint TEXT,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		report JSON,
		loaded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_loaded ON generations(loaded_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Pins returns the pinned positions in scope
func (r *Repository) Pins(ctx context.Context, scope string) (map[string]domain.Vec3, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, x, y, z FROM pins WHERE scope = ?
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query pins: %w", err)
	}
	defer rows.Close()

	pins := make(map[string]domain.Vec3)
	for rows.Next() {
		var (
			id  string
			pos domain.Vec3
		)
		if err := rows.Scan(&id, &pos.X, &pos.Y, &pos.Z); err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		pins[id] = pos
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pins: %w", err)
	}
	return pins, nil
}

// SavePin creates or moves a pin
func (r *Repository) SavePin(ctx context.Context, scope, nodeID string, pos domain.Vec3) error {
	if nodeID == "" {
		return errors.New("pin needs a node id")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pins (scope, node_id, x, y, z, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, node_id) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			z = excluded.z,
			updated_at = excluded.updated_at
	`, scope, nodeID, pos.X, pos.Y, pos.Z, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save pin %s: %w", nodeID, err)
	}
	return nil
}

// DeletePin removes a pin
func (r *Repository) DeletePin(ctx context.Context, scope, nodeID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pins WHERE scope = ? AND node_id = ?`, scope, nodeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pin %s: %w", nodeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearPins removes every pin in scope
func (r *Repository) ClearPins(ctx context.Context, scope string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pins WHERE scope = ?`, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pins: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RecordGeneration appends a generation and trims the history to
// MaxGenerations. gen.ID and gen.LoadedAt are filled in.
func (r *Repository) RecordGeneration(ctx context.Context, gen *repository.Generation) error {
	if gen.LoadedAt.IsZero() {
		gen.LoadedAt = time.Now()
	}
	report, err := marshalToNull(gen.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO generations (scope, source, fingerprint, node_count, edge_count, report, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, gen.Scope, gen.Source, stringToNull(gen.Fingerprint), gen.Nodes, gen.Edges, report, toMillis(gen.LoadedAt))
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	if gen.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM generations WHERE id NOT IN (
			SELECT id FROM generations ORDER BY id DESC LIMIT ?
		)
	`, MaxGenerations)
	if err != nil {
		return fmt.Errorf("failed to trim generations: %w", err)
	}

	return tx.Commit()
}

// Generations returns the most recent generations, newest first
func (r *Repository) Generations(ctx context.Context, limit int) ([]repository.Generation, error) {
	if limit <= 0 || limit > MaxGenerations {
		limit = MaxGenerations
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope, source, fingerprint, node_count, edge_count, report, loaded_at
		FROM generations ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var gens []repository.Generation
	for rows.Next() {
		var (
			gen         repository.Generation
			fingerprint sql.NullString
			report      sql.NullString
			loadedAt    int64
		)
		if err := rows.Scan(&gen.ID, &gen.Scope, &gen.Source, &fingerprint,
			&gen.Nodes, &gen.Edges, &report, &loadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gen.Fingerprint = nullToString(fingerprint)
		gen.LoadedAt = fromMillis(loadedAt)
		if err := unmarshalJSONField(report, &gen.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		gens = append(gens, gen)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generations: %w", err)
	}
	return gens, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
