package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/l1jgo/zonelights/internal/lighting"
)

// ErrZoneNotFound is returned when a zone has no row in the zones table.
var ErrZoneNotFound = errors.New("zone not found")

// ZoneRepo stores zone light lists. Lights keep their insertion order (seq),
// which is the order catalog ids are assigned in.
type ZoneRepo interface {
	LoadLights(ctx context.Context, zoneID int32) ([]lighting.Descriptor, error)
	ReplaceZone(ctx context.Context, zoneID int32, name string, lights []lighting.Descriptor) error
	ZoneIDs(ctx context.Context) ([]int32, error)
}

// PGZoneRepo is the PostgreSQL ZoneRepo.
type PGZoneRepo struct {
	db *DB
}

func NewPGZoneRepo(db *DB) *PGZoneRepo {
	return &PGZoneRepo{db: db}
}

func (r *PGZoneRepo) LoadLights(ctx context.Context, zoneID int32) ([]lighting.Descriptor, error) {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM zones WHERE zone_id = $1)`, zoneID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrZoneNotFound
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT x, y, z, r, g, b FROM zone_lights
		 WHERE zone_id = $1 ORDER BY seq`, zoneID)
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

// ReplaceZone upserts the zone row and rewrites its lights in one transaction.
func (r *PGZoneRepo) ReplaceZone(ctx context.Context, zoneID int32, name string, lights []lighting.Descriptor) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO zones (zone_id, name) VALUES ($1, $2)
		 ON CONFLICT (zone_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`,
		zoneID, name); err != nil {
		return fmt.Errorf("upsert zone %d: %w", zoneID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM zone_lights WHERE zone_id = $1`, zoneID); err != nil {
		return fmt.Errorf("clear zone %d lights: %w", zoneID, err)
	}

	rows := make([][]any, len(lights))
	for i, d := range lights {
		rows[i] = []any{zoneID, int32(i), d.X, d.Y, d.Z, d.R, d.G, d.B}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"zone_lights"},
		[]string{"zone_id", "seq", "x", "y", "z", "r", "g", "b"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy zone %d lights: %w", zoneID, err)
	}
	return tx.Commit(ctx)
}

func (r *PGZoneRepo) ZoneIDs(ctx context.Context) ([]int32, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT zone_id FROM zones ORDER BY zone_id`)
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
