// Package router implements the router (C3): given a classification, a
// requested model/alias, and optional session id, it resolves an ordered
// candidate chain, consulting the session pin store and wallet balance
// state along the way.
package router

import (
	"sort"
	"strings"

	"github.com/clawrouter/clawrouter/internal/catalog"
	"github.com/clawrouter/clawrouter/internal/money"
)

// Alias values recognized in the "model" field.
const (
	AliasAuto    = "auto"
	AliasEco     = "eco"
	AliasPremium = "premium"
	AliasFree    = "free"
)

// PinStore is the subset of pinstore.Store the router needs. Defined
// here (consumer side) so tests can substitute a fake without importing
// the LRU-backed implementation.
type PinStore interface {
	Get(sessionID, tierProfile string) (string, bool)
}

// BalanceReader is the subset of balance.Monitor the router needs. The
// router must never block on this — IsWalletEmpty returns immediately
// with whatever was last sampled, or ok=false if nothing has been
// sampled yet (treated as "unknown, proceed").
type BalanceReader interface {
	IsWalletEmpty() (empty bool, ok bool)
}

// Decision is the result of routing one request (spec.md §3).
type Decision struct {
	Tier            catalog.Tier
	TierProfile     string
	PrimaryModel    string
	CandidateChain  []string
	Reasoning       string
	CostEstimate    money.USD
	Savings         float64
}

// Request is everything the router needs about one chat-completions call.
type Request struct {
	RequestedModel string // raw "model" field value, alias or explicit id
	SessionID      string
	MaxTokens      int
	Tags           map[catalog.Capability]bool
}

// Router resolves routing decisions against a fixed catalog.
type Router struct {
	catalog *catalog.Catalog
	pins    PinStore
	balance BalanceReader
}

// New builds a Router. pins and balance may be nil (pinning and
// balance-aware downgrade are then simply skipped).
func New(cat *catalog.Catalog, pins PinStore, bal BalanceReader) *Router {
	return &Router{catalog: cat, pins: pins, balance: bal}
}

// Route resolves a Decision for req.
func (r *Router) Route(req Request) Decision {
	tierProfile, tier, primary, reasoning := r.resolveAlias(req)

	capsList := capsOf(req.Tags)

	chain := []string{primary}
	chain = append(chain, r.sameTierCandidates(primary, tier, capsList)...)
	chain = append(chain, r.catalog.EmergencyFree())
	chain = dedupe(chain)

	if pinned, ok := r.pinFor(req.SessionID, tierProfile); ok && pinned != primary {
		if r.pinCompatible(pinned, req.Tags) {
			chain = prependUnique(chain, pinned)
			primary = pinned
		}
	}

	cost := money.CostFromPricePerMillion(r.catalog.PriceForMillion(primary), req.MaxTokens)
	savings := r.savingsAgainstPremium(primary, req.MaxTokens, tier, capsList)

	return Decision{
		Tier:           tier,
		TierProfile:    tierProfile,
		PrimaryModel:   primary,
		CandidateChain: chain,
		Reasoning:      reasoning,
		CostEstimate:   cost,
		Savings:        savings,
	}
}

// resolveAlias implements spec.md §4.3's alias resolution table. It
// returns the tier profile key (used to scope session pins), the
// resolved tier, the primary model id, and a human-readable reasoning
// string for the Decision.
func (r *Router) resolveAlias(req Request) (tierProfile string, tier catalog.Tier, primary string, reasoning string) {
	raw := strings.TrimSpace(req.RequestedModel)
	lower := strings.ToLower(raw)

	switch lower {
	case AliasAuto, "":
		tierProfile = AliasAuto
		if r.walletEmpty() {
			tier = catalog.TierFree
			primary = r.cheapestInTier(catalog.TierFree, capsOf(req.Tags))
			return tierProfile, tier, primary, "auto: wallet empty, downgraded to free"
		}
		if req.Tags[catalog.CapReasoning] || req.Tags[catalog.CapCode] || req.Tags[catalog.CapLongContext] {
			tier = catalog.TierPremium
		} else {
			tier = catalog.TierStandard
		}
		primary = r.bestInTier(tier, capsOf(req.Tags))
		return tierProfile, tier, primary, "auto: classification-driven tier selection"

	case AliasEco:
		tierProfile = AliasEco
		tier = catalog.TierEco
		primary = r.cheapestNonFree(capsOf(req.Tags))
		return tierProfile, tier, primary, "eco: cheapest non-free model satisfying capabilities"

	case AliasPremium:
		tierProfile = AliasPremium
		tier = catalog.TierPremium
		primary = r.bestInTier(catalog.TierPremium, capsOf(req.Tags))
		return tierProfile, tier, primary, "premium: highest-quality model satisfying capabilities"

	case AliasFree:
		tierProfile = AliasFree
		tier = catalog.TierFree
		primary = r.cheapestInTier(catalog.TierFree, capsOf(req.Tags))
		return tierProfile, tier, primary, "free: zero-priced model"

	default:
		normalized := catalog.Normalize(raw)
		tierProfile = normalized
		if m, ok := r.catalog.Lookup(normalized); ok {
			tier = m.Tier
		}
		return tierProfile, tier, normalized, "explicit model, normalized"
	}
}

func (r *Router) walletEmpty() bool {
	if r.balance == nil {
		return false
	}
	empty, ok := r.balance.IsWalletEmpty()
	return ok && empty
}

func (r *Router) pinFor(sessionID, tierProfile string) (string, bool) {
	if r.pins == nil {
		return "", false
	}
	return r.pins.Get(sessionID, tierProfile)
}

func (r *Router) pinCompatible(modelID string, tags map[catalog.Capability]bool) bool {
	m, ok := r.catalog.Lookup(modelID)
	if !ok {
		// Explicit models absent from the catalog are advisory-priced
		// only; treat them as compatible since we cannot evaluate caps.
		return true
	}
	return m.HasAll(capsOf(tags))
}

func (r *Router) cheapestInTier(tier catalog.Tier, caps []catalog.Capability) string {
	candidates := filterByCaps(r.catalog.InTier(tier), caps)
	if len(candidates) == 0 {
		candidates = r.catalog.InTier(tier)
	}
	if len(candidates) == 0 {
		return catalog.EmergencyFreeModel
	}
	sort.Slice(candidates, func(i, j int) bool {
		return r.catalog.PriceForMillion(candidates[i].ID) < r.catalog.PriceForMillion(candidates[j].ID)
	})
	return candidates[0].ID
}

func (r *Router) cheapestNonFree(caps []catalog.Capability) string {
	var pool []catalog.Model
	for _, m := range r.catalog.All() {
		if m.PricePerMillion > 0 {
			pool = append(pool, m)
		}
	}
	candidates := filterByCaps(pool, caps)
	if len(candidates) == 0 {
		candidates = pool
	}
	if len(candidates) == 0 {
		return catalog.EmergencyFreeModel
	}
	sort.Slice(candidates, func(i, j int) bool {
		return r.catalog.PriceForMillion(candidates[i].ID) < r.catalog.PriceForMillion(candidates[j].ID)
	})
	return candidates[0].ID
}

func (r *Router) bestInTier(tier catalog.Tier, caps []catalog.Capability) string {
	candidates := filterByCaps(r.catalog.InTier(tier), caps)
	if len(candidates) == 0 {
		candidates = r.catalog.InTier(tier)
	}
	if len(candidates) == 0 {
		return catalog.EmergencyFreeModel
	}
	sort.Slice(candidates, func(i, j int) bool {
		return r.catalog.PriceForMillion(candidates[i].ID) > r.catalog.PriceForMillion(candidates[j].ID)
	})
	return candidates[0].ID
}

// sameTierCandidates returns the other models in the same tier matching
// capabilities, sorted by ascending price (spec.md §4.3 step 2).
func (r *Router) sameTierCandidates(primary string, tier catalog.Tier, caps []catalog.Capability) []string {
	candidates := filterByCaps(r.catalog.InTier(tier), caps)
	sort.Slice(candidates, func(i, j int) bool {
		return r.catalog.PriceForMillion(candidates[i].ID) < r.catalog.PriceForMillion(candidates[j].ID)
	})
	var out []string
	for _, m := range candidates {
		if m.ID != primary {
			out = append(out, m.ID)
		}
	}
	return out
}

func (r *Router) savingsAgainstPremium(primary string, maxTokens int, tier catalog.Tier, caps []catalog.Capability) float64 {
	premiumModel := r.bestInTier(catalog.TierPremium, caps)
	premiumCost := money.CostFromPricePerMillion(r.catalog.PriceForMillion(premiumModel), maxTokens)
	if premiumCost.IsZero() {
		return 0
	}
	primaryCost := money.CostFromPricePerMillion(r.catalog.PriceForMillion(primary), maxTokens)
	savings := 1 - (float64(primaryCost.Micros()) / float64(premiumCost.Micros()))
	if savings < 0 {
		savings = 0
	}
	return savings
}

func capsOf(tags map[catalog.Capability]bool) []catalog.Capability {
	var out []catalog.Capability
	for c, ok := range tags {
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func filterByCaps(models []catalog.Model, caps []catalog.Capability) []catalog.Model {
	var out []catalog.Model
	for _, m := range models {
		if m.HasAll(caps) {
			out = append(out, m)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func prependUnique(chain []string, id string) []string {
	filtered := make([]string, 0, len(chain)+1)
	filtered = append(filtered, id)
	for _, c := range chain {
		if c != id {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
