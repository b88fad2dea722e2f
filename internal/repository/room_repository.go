package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/oakwell/room-booking/internal/model"
)

// RoomRepo provides read access to rooms.  Rooms are administered out
// of band; the engine only needs lookups and the active listing.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// GetByID returns one room or ErrRoomNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, location, is_active, created_at, updated_at
	           FROM rooms WHERE id = ?`
	var rm model.Room
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&rm.ID, &rm.Name, &rm.Location, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// ListActive returns all rooms currently accepting bookings, grouped
// by location for stable output.
func (r *RoomRepo) ListActive(ctx context.Context) ([]model.Room, error) {
	const q = `SELECT id, name, location, is_active, created_at, updated_at
	           FROM rooms WHERE is_active = 1
	           ORDER BY location, name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		var rm model.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Location, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
