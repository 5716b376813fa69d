package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawrouter/clawrouter/internal/catalog"
)

type fakePins struct {
	pins map[[2]string]string
}

func newFakePins() *fakePins { return &fakePins{pins: map[[2]string]string{}} }

func (f *fakePins) Get(sessionID, tierProfile string) (string, bool) {
	v, ok := f.pins[[2]string{sessionID, tierProfile}]
	return v, ok
}

func (f *fakePins) set(sessionID, tierProfile, model string) {
	f.pins[[2]string{sessionID, tierProfile}] = model
}

type fakeBalance struct {
	empty bool
	ok    bool
}

func (f fakeBalance) IsWalletEmpty() (bool, bool) { return f.empty, f.ok }

func TestRoute_ExplicitModelNormalized(t *testing.T) {
	r := New(catalog.New(nil), nil, nil)
	d := r.Route(Request{RequestedModel: "  DEEPSEEK/deepseek-chat  "})
	assert.Equal(t, "deepseek/deepseek-chat", d.PrimaryModel)
}

func TestRoute_AliasAuto_PicksStandardForGeneralPrompt(t *testing.T) {
	r := New(catalog.New(nil), nil, nil)
	d := r.Route(Request{RequestedModel: "auto", Tags: map[catalog.Capability]bool{catalog.CapGeneral: true}})
	assert.Equal(t, catalog.TierStandard, d.Tier)
}

func TestRoute_AliasAuto_PicksPremiumForReasoning(t *testing.T) {
	r := New(catalog.New(nil), nil, nil)
	d := r.Route(Request{RequestedModel: "auto", Tags: map[catalog.Capability]bool{catalog.CapReasoning: true}})
	assert.Equal(t, catalog.TierPremium, d.Tier)
}

func TestRoute_AliasAuto_DowngradesToFreeWhenWalletEmpty(t *testing.T) {
	r := New(catalog.New(nil), nil, fakeBalance{empty: true, ok: true})
	d := r.Route(Request{RequestedModel: "auto", Tags: map[catalog.Capability]bool{catalog.CapReasoning: true}})
	assert.Equal(t, catalog.TierFree, d.Tier)
}

func TestRoute_AliasEco_PicksCheapestNonFree(t *testing.T) {
	r := New(catalog.New(nil), nil, nil)
	d := r.Route(Request{RequestedModel: "eco"})
	assert.Equal(t, "deepseek/deepseek-chat", d.PrimaryModel)
}

func TestRoute_CandidateChainEndsInEmergencyFree(t *testing.T) {
	r := New(catalog.New(nil), nil, nil)
	d := r.Route(Request{RequestedModel: "premium", Tags: map[catalog.Capability]bool{catalog.CapReasoning: true}})
	require.NotEmpty(t, d.CandidateChain)
	assert.Equal(t, catalog.EmergencyFreeModel, d.CandidateChain[len(d.CandidateChain)-1])
}

func TestRoute_SessionPinAppliedWhenCompatible(t *testing.T) {
	pins := newFakePins()
	// auto+reasoning would otherwise resolve to the most expensive
	// premium model (claude-opus-4-5); pin a cheaper compatible one and
	// confirm the pin wins.
	pins.set("session-1", "auto", "anthropic/claude-sonnet-4-5")
	r := New(catalog.New(nil), pins, nil)

	d := r.Route(Request{RequestedModel: "auto", SessionID: "session-1", Tags: map[catalog.Capability]bool{catalog.CapReasoning: true}})
	assert.Equal(t, "anthropic/claude-sonnet-4-5", d.PrimaryModel)
}

func TestRoute_SwitchingTierProfileIgnoresOtherProfilesPin(t *testing.T) {
	pins := newFakePins()
	pins.set("session-1", "premium", "anthropic/claude-opus-4-5")
	r := New(catalog.New(nil), pins, nil)

	// Same session, but the eco alias has a different tier profile key,
	// so the premium pin must never leak in.
	d := r.Route(Request{RequestedModel: "eco", SessionID: "session-1"})
	assert.NotEqual(t, "anthropic/claude-opus-4-5", d.PrimaryModel)
}

func TestRoute_PinIncompatibleWithCapabilitiesIsIgnored(t *testing.T) {
	pins := newFakePins()
	pins.set("session-1", "auto", "meta/llama-3.3-70b") // no vision capability
	r := New(catalog.New(nil), pins, nil)

	d := r.Route(Request{RequestedModel: "auto", SessionID: "session-1", Tags: map[catalog.Capability]bool{catalog.CapVision: true}})
	assert.NotEqual(t, "meta/llama-3.3-70b", d.PrimaryModel)
}
