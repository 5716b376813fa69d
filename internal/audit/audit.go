// Package audit implements the optional write-only request audit trail
// (SPEC_FULL.md §A4), adapted from the teacher's LogRequest pattern.
// The sink is never read back on the request path — it cannot violate
// spec.md §1's "no persistence of routing decisions across restarts"
// Non-goal because nothing downstream of it feeds back into routing.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clawrouter/clawrouter/internal/db"
)

// Entry is one completed request's audit record.
type Entry struct {
	SessionID        string
	TierProfile      string
	PrimaryModel     string
	FinalModel       string
	FallbackCount    int
	PaymentMode      string
	CostEstimateUSD  float64
	StatusCode       int
	ErrorKind        string
}

// Sink persists Entry records.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// NoopSink is used whenever DATABASE_URL is unset.
type NoopSink struct{}

// Record implements Sink.
func (NoopSink) Record(context.Context, Entry) {}

// PostgresSink writes to request_audit_log asynchronously — logging
// must never add latency to the response path (mirrors the teacher's
// `go h.db.LogRequest(...)` fire-and-forget pattern).
type PostgresSink struct {
	db *db.DB
}

// NewPostgresSink builds a PostgresSink.
func NewPostgresSink(d *db.DB) *PostgresSink {
	return &PostgresSink{db: d}
}

// Record implements Sink.
func (s *PostgresSink) Record(_ context.Context, e Entry) {
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, _ = s.db.Conn.ExecContext(writeCtx, `
			INSERT INTO request_audit_log (
				id, session_id, tier_profile, primary_model, final_model,
				fallback_count, payment_mode, cost_estimate_usd, status_code, error_kind
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			uuid.NewString(), e.SessionID, e.TierProfile, e.PrimaryModel, e.FinalModel,
			e.FallbackCount, e.PaymentMode, e.CostEstimateUSD, e.StatusCode, e.ErrorKind,
		)
	}()
}
