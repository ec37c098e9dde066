package shared

import (
	"time"

	"github.com/google/uuid"
)

// Bidder is a registered participant; identity itself is managed elsewhere
type Bidder struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Vehicle is the catalog entry a lot sells
type Vehicle struct {
	ID        uuid.UUID `json:"id"`
	VIN       string    `json:"vin"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
