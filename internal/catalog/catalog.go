// Package catalog holds the static model registry (C1): identifiers,
// tiers, per-million-token pricing, and capability flags. It is
// initialized once at startup and never mutated; the only moving part is
// an optional pricing overlay consulted ahead of the static price.
package catalog

import "strings"

// Tier is the routing tier a model belongs to.
type Tier string

const (
	TierFree     Tier = "free"
	TierEco      Tier = "eco"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Capability is a prompt/model capability tag.
type Capability string

const (
	CapReasoning   Capability = "reasoning"
	CapCode        Capability = "code"
	CapVision      Capability = "vision"
	CapLongContext Capability = "long-context"
	CapGeneral     Capability = "general"
)

// Model is an immutable descriptor for one routable model.
type Model struct {
	ID               string
	Tier             Tier
	PricePerMillion  float64
	Capabilities     map[Capability]bool
	RequiresPayment  bool
	EmergencyFree    bool
}

// HasCapability reports whether the model satisfies cap.
func (m Model) HasCapability(cap Capability) bool {
	return m.Capabilities[cap]
}

// HasAll reports whether the model satisfies every capability in caps.
func (m Model) HasAll(caps []Capability) bool {
	for _, c := range caps {
		if !m.HasCapability(c) {
			return false
		}
	}
	return true
}

// PricingOverlay is consulted by the catalog ahead of the static price.
// A nil overlay (or one returning ok=false) falls back to the static
// PricePerMillion field — see internal/pricing for the Postgres-backed
// and no-op implementations.
type PricingOverlay interface {
	Lookup(modelID string) (pricePerMillion float64, ok bool)
}

// Catalog is the static model registry plus an optional pricing overlay.
type Catalog struct {
	models        []Model
	byID          map[string]Model
	overlay       PricingOverlay
	emergencyFree string
}

// EmergencyFreeModel is the hard-coded fallback model id every candidate
// chain must terminate in (spec.md §4.3 step 3). New selects the cheapest
// catalog model tagged EmergencyFree instead; this constant is the
// default when no model carries the tag.
const EmergencyFreeModel = "nvidia/gpt-oss-120b"

// New builds a Catalog from the default model set.
func New(overlay PricingOverlay) *Catalog {
	c := &Catalog{
		byID:          make(map[string]Model),
		overlay:       overlay,
		emergencyFree: EmergencyFreeModel,
	}
	haveTagged := false
	for _, m := range defaultModels() {
		c.models = append(c.models, m)
		c.byID[m.ID] = m
		if m.EmergencyFree && (!haveTagged || m.PricePerMillion < c.byID[c.emergencyFree].PricePerMillion) {
			c.emergencyFree = m.ID
			haveTagged = true
		}
	}
	return c
}

// EmergencyFree returns the id of the catalog's designated emergency
// free model.
func (c *Catalog) EmergencyFree() string { return c.emergencyFree }

// Lookup returns the model descriptor for id, and whether it exists in
// the catalog. Explicit models absent from the catalog are still valid
// routing targets (the catalog is advisory for pricing only) — callers
// must handle ok=false gracefully rather than rejecting the request.
func (c *Catalog) Lookup(id string) (Model, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// PriceForMillion returns the effective price per million tokens for a
// model, consulting the overlay first.
func (c *Catalog) PriceForMillion(id string) float64 {
	if c.overlay != nil {
		if price, ok := c.overlay.Lookup(id); ok {
			return price
		}
	}
	if m, ok := c.byID[id]; ok {
		return m.PricePerMillion
	}
	return 0
}

// All returns every model in the catalog, in registration order.
func (c *Catalog) All() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// InTier returns every model in the given tier, in registration order.
func (c *Catalog) InTier(tier Tier) []Model {
	var out []Model
	for _, m := range c.models {
		if m.Tier == tier {
			out = append(out, m)
		}
	}
	return out
}

// Free returns every zero-priced model.
func (c *Catalog) Free() []Model {
	var out []Model
	for _, m := range c.models {
		if m.PricePerMillion == 0 {
			out = append(out, m)
		}
	}
	return out
}

// Normalize trims whitespace and lowercases the vendor prefix segment
// (before the first '/') of an explicit model id, preserving the rest.
// normalize(normalize(x)) == normalize(x) for all x.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	idx := strings.Index(id, "/")
	if idx < 0 {
		return strings.ToLower(id)
	}
	vendor := strings.ToLower(id[:idx])
	return vendor + id[idx:]
}

func defaultModels() []Model {
	return []Model{
		{
			ID:              "nvidia/gpt-oss-120b",
			Tier:            TierFree,
			PricePerMillion: 0,
			RequiresPayment: false,
			EmergencyFree:   true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapCode: true,
			},
		},
		{
			ID:              "meta/llama-3.3-70b",
			Tier:            TierFree,
			PricePerMillion: 0,
			RequiresPayment: false,
			Capabilities: map[Capability]bool{
				CapGeneral: true,
			},
		},
		{
			ID:              "deepseek/deepseek-chat",
			Tier:            TierEco,
			PricePerMillion: 0.28,
			RequiresPayment: true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapCode: true,
			},
		},
		{
			ID:              "qwen/qwen-2.5-72b",
			Tier:            TierEco,
			PricePerMillion: 0.35,
			RequiresPayment: true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapLongContext: true,
			},
		},
		{
			ID:              "xai/grok-code-fast-1",
			Tier:            TierStandard,
			PricePerMillion: 1.5,
			RequiresPayment: true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapCode: true,
			},
		},
		{
			ID:              "anthropic/claude-sonnet-4-5",
			Tier:            TierPremium,
			PricePerMillion: 9.0,
			RequiresPayment: true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapCode: true, CapReasoning: true, CapLongContext: true,
			},
		},
		{
			ID:              "openai/gpt-5",
			Tier:            TierPremium,
			PricePerMillion: 10.0,
			RequiresPayment: true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapReasoning: true, CapCode: true,
			},
		},
		{
			ID:              "anthropic/claude-opus-4-5",
			Tier:            TierPremium,
			PricePerMillion: 22.0,
			RequiresPayment: true,
			Capabilities: map[Capability]bool{
				CapGeneral: true, CapReasoning: true, CapCode: true, CapVision: true, CapLongContext: true,
			},
		},
	}
}
