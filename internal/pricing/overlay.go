// Package pricing implements the optional Postgres-backed pricing
// overlay (SPEC_FULL.md §A4): a model-id → price-per-million override
// layer consulted ahead of the static catalog price, adapted from the
// teacher's GetModelPricing query pattern.
package pricing

import (
	"context"
	"database/sql"
	"time"

	"github.com/clawrouter/clawrouter/internal/db"
)

const queryTimeout = 2 * time.Second

// Overlay satisfies catalog.PricingOverlay.
type Overlay interface {
	Lookup(modelID string) (pricePerMillion float64, ok bool)
}

// NoopOverlay is used whenever DATABASE_URL is unset; it never
// overrides the static catalog price.
type NoopOverlay struct{}

// Lookup implements Overlay.
func (NoopOverlay) Lookup(string) (float64, bool) { return 0, false }

// PostgresOverlay reads price_overrides. Lookup is called on the
// request-handling path, so it deliberately uses a short, fixed
// per-query timeout rather than inheriting the caller's whole-request
// deadline — a slow overlay query must never stall routing.
type PostgresOverlay struct {
	db *db.DB
}

// NewPostgresOverlay builds a PostgresOverlay.
func NewPostgresOverlay(d *db.DB) *PostgresOverlay {
	return &PostgresOverlay{db: d}
}

// Lookup implements Overlay.
func (o *PostgresOverlay) Lookup(modelID string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var price float64
	err := o.db.Conn.QueryRowContext(ctx,
		`SELECT price_per_million FROM price_overrides WHERE model_id = $1`, modelID,
	).Scan(&price)
	if err == sql.ErrNoRows || err != nil {
		return 0, false
	}
	return price, true
}
