package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/l1jgo/zonelights/internal/lighting"
)

// OpenSQLite opens (creating if needed) a SQLite zone database and applies
// migrations. Used for offline tooling and single-box deployments.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite zone db ready", zap.String("path", path))
	return db, nil
}

// SQLiteZoneRepo is the SQLite ZoneRepo.
type SQLiteZoneRepo struct {
	db *sql.DB
}

func NewSQLiteZoneRepo(db *sql.DB) *SQLiteZoneRepo {
	return &SQLiteZoneRepo{db: db}
}

func (r *SQLiteZoneRepo) LoadLights(ctx context.Context, zoneID int32) ([]lighting.Descriptor, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zones WHERE zone_id = ?`, zoneID,
	).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrZoneNotFound
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT x, y, z, r, g, b FROM zone_lights
		 WHERE zone_id = ? ORDER BY seq`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lighting.Descriptor
	for rows.Next() {
		var d lighting.Descriptor
		if err := rows.Scan(&d.X, &d.Y, &d.Z, &d.R, &d.G, &d.B); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteZoneRepo) ReplaceZone(ctx context.Context, zoneID int32, name string, lights []lighting.Descriptor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO zones (zone_id, name) VALUES (?, ?)
		 ON CONFLICT (zone_id) DO UPDATE SET name = excluded.name, updated_at = datetime('now')`,
		zoneID, name); err != nil {
		return fmt.Errorf("upsert zone %d: %w", zoneID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_lights WHERE zone_id = ?`, zoneID); err != nil {
		return fmt.Errorf("clear zone %d lights: %w", zoneID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zone_lights (zone_id, seq, x, y, z, r, g, b) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, d := range lights {
		if _, err := stmt.ExecContext(ctx, zoneID, i, d.X, d.Y, d.Z, d.R, d.G, d.B); err != nil {
			return fmt.Errorf("insert zone %d light %d: %w", zoneID, i, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteZoneRepo) ZoneIDs(ctx context.Context) ([]int32, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT zone_id FROM zones ORDER BY zone_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
