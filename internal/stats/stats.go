// Package stats implements the per-model counters backing GET /stats
// (spec.md §4.9): attempts, successes, fallbacks-engaged, and
// wrapped-payment-failures, all atomically incremented so concurrent
// requests never race on the same model's counters.
package stats

import "sync"

// Counters is one model's counters.
type Counters struct {
	Attempts               int64
	Successes              int64
	FallbacksEngaged       int64
	WrappedPaymentFailures int64
}

// Registry holds per-model Counters behind a mutex protecting the map
// itself; individual counter mutation is done with atomic-style
// increments under the same lock since the map can grow (new model ids
// appear over the process lifetime, e.g. an explicit model never seen
// before).
type Registry struct {
	mu   sync.Mutex
	byID map[string]*Counters
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Counters)}
}

// RecordAttempt increments the attempt counter for model.
func (r *Registry) RecordAttempt(model string) {
	r.mu.Lock()
	r.entryLocked(model).Attempts++
	r.mu.Unlock()
}

// RecordSuccess increments the success counter for model.
func (r *Registry) RecordSuccess(model string) {
	r.mu.Lock()
	r.entryLocked(model).Successes++
	r.mu.Unlock()
}

// RecordFallbackEngaged increments the fallback-engaged counter for
// model (the model a request fell through to, not the one that failed).
func (r *Registry) RecordFallbackEngaged(model string) {
	r.mu.Lock()
	r.entryLocked(model).FallbacksEngaged++
	r.mu.Unlock()
}

// RecordWrappedPaymentFailure increments the wrapped-payment-failure
// counter for model.
func (r *Registry) RecordWrappedPaymentFailure(model string) {
	r.mu.Lock()
	r.entryLocked(model).WrappedPaymentFailures++
	r.mu.Unlock()
}

func (r *Registry) entryLocked(model string) *Counters {
	c, ok := r.byID[model]
	if !ok {
		c = &Counters{}
		r.byID[model] = c
	}
	return c
}

// Snapshot returns a point-in-time copy of every model's counters.
func (r *Registry) Snapshot() map[string]Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Counters, len(r.byID))
	for k, v := range r.byID {
		out[k] = *v
	}
	return out
}
