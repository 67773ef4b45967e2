package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// RoomRepository reads rooms and section room bindings.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListByPeriod returns the rooms of the period.
func (r *RoomRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.Room, error) {
	const query = `SELECT id, school_year, term, name, capacity, type, created_at, updated_at
FROM rooms WHERE school_year = $1 AND term = $2 ORDER BY id`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListBindings returns room bindings newest first so the first one seen per section wins.
func (r *RoomRepository) ListBindings(ctx context.Context, period models.Period) ([]models.RoomBinding, error) {
	const query = `SELECT id, school_year, term, section_id, room_id, created_at
FROM room_bindings WHERE school_year = $1 AND term = $2 ORDER BY section_id, created_at DESC, id DESC`
	var bindings []models.RoomBinding
	if err := r.db.SelectContext(ctx, &bindings, query, period.SchoolYear, period.Term); err != nil {
		return nil, fmt.Errorf("list room bindings: %w", err)
	}
	return bindings, nil
}
