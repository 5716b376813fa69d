// Package fallback implements the fallback executor (C8): a pure
// sequential loop over a candidate chain, handing each step to the
// upstream dispatcher until one succeeds, a fatal client error is hit,
// or the chain is exhausted. No recursion, no speculative parallelism —
// fallback never fans out, so a request is never billed twice for the
// same attempt (spec.md §9).
package fallback

import (
	"context"
	"net/http"
	"time"

	"github.com/clawrouter/clawrouter/internal/dispatcher"
	"github.com/clawrouter/clawrouter/internal/money"
)

// TotalDeadline bounds the whole request (spec.md §4.8/§5 default 120s).
const TotalDeadline = 120 * time.Second

// MinAttemptTimeout is the floor for any single attempt's slice of the
// remaining budget (spec.md §4.8).
const MinAttemptTimeout = 10 * time.Second

// MaxAttemptTimeout is the ceiling for any single attempt.
const MaxAttemptTimeout = 60 * time.Second

// Dispatch is the function signature the executor calls per candidate;
// satisfied by dispatcher.Dispatcher.Dispatch.
type Dispatch func(ctx context.Context, candidateModel string, preAuth money.USD) dispatcher.Result

// Outcome is the final result of walking a candidate chain.
type Outcome struct {
	Result       dispatcher.Result
	AttemptedIDs []string
	FallbackUsed bool
}

// Run walks chain, invoking dispatch for each candidate in order,
// never retrying a model already attempted within this request and
// never exceeding deadline in total. preAuthFor computes the
// pre-authorization amount for a given candidate (varies because each
// candidate may have a different price).
func Run(ctx context.Context, chain []string, preAuthFor func(model string) money.USD, dispatch Dispatch) Outcome {
	deadline := time.Now().Add(TotalDeadline)
	var attempted []string
	var last dispatcher.Result
	seen := make(map[string]bool, len(chain))

	for i, model := range chain {
		if seen[model] {
			continue
		}
		seen[model] = true

		if ctx.Err() != nil {
			last = dispatcher.Result{Kind: dispatcher.KindTransportError, Status: 0, Body: []byte(ctx.Err().Error()), Model: model}
			break
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		remainingSteps := len(chain) - i
		attemptTimeout := remaining / time.Duration(remainingSteps)
		if attemptTimeout < MinAttemptTimeout {
			attemptTimeout = MinAttemptTimeout
		}
		if attemptTimeout > MaxAttemptTimeout {
			attemptTimeout = MaxAttemptTimeout
		}
		if attemptTimeout > remaining {
			attemptTimeout = remaining
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		result := dispatch(attemptCtx, model, preAuthFor(model))
		cancel()

		attempted = append(attempted, model)
		last = result

		if result.Kind == dispatcher.KindSuccess {
			return Outcome{Result: result, AttemptedIDs: attempted, FallbackUsed: len(attempted) > 1}
		}
		if result.Kind == dispatcher.KindClientError {
			return Outcome{Result: result, AttemptedIDs: attempted, FallbackUsed: false}
		}
		// recoverable: continue to next candidate
	}

	if last.Status == 0 {
		last.Status = http.StatusBadGateway
	}
	return Outcome{Result: last, AttemptedIDs: attempted, FallbackUsed: len(attempted) > 1}
}
