// Package payment implements the payment backend variant (C6): wallet
// (x402) and claw.credit (custodial), behind one Backend interface
// selected once at startup from config — no dynamic plugin loading
// (spec.md §9).
package payment

import (
	"context"
	"net/http"

	"github.com/clawrouter/clawrouter/internal/money"
)

// UpstreamRequest is the outgoing call the backend attaches payment to.
type UpstreamRequest struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

// Response is the upstream's (or, for claw.credit, the unwrapped
// merchant's) HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Backend attaches payment credentials to one upstream call. Mode is
// fixed at construction; Invoke must be safe for concurrent use by
// multiple in-flight requests (spec.md §5, "Payment backend: immutable
// after construction").
type Backend interface {
	// Invoke executes the upstream call with payment attached,
	// pre-authorizing preAuth (a micro-USD estimate per spec.md's
	// Pre-authorization amount).
	Invoke(ctx context.Context, req UpstreamRequest, preAuth money.USD) (*Response, error)
	// Mode identifies the backend variant for logging/stats.
	Mode() string
}

// Mode names.
const (
	ModeWallet     = "wallet"
	ModeClawCredit = "clawcredit"
)
