package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vehicle-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// VehicleRepository implements the vehicle repository interface
type VehicleRepository struct {
	conn *Connection
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(conn *Connection) *VehicleRepository {
	return &VehicleRepository{conn: conn}
}

// Create registers a vehicle
func (r *VehicleRepository) Create(ctx context.Context, v *shared.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, vin, make, model, year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		v.ID,
		v.VIN,
		v.Make,
		v.Model,
		v.Year,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

// GetByID retrieves a vehicle by ID
func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Vehicle, error) {
	query := `
		SELECT id, vin, make, model, year, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`

	var v shared.Vehicle
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.VIN,
		&v.Make,
		&v.Model,
		&v.Year,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return &v, nil
}
