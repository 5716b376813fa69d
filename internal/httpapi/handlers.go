package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/clawrouter/clawrouter/internal/audit"
	"github.com/clawrouter/clawrouter/internal/classifier"
	"github.com/clawrouter/clawrouter/internal/dedup"
	"github.com/clawrouter/clawrouter/internal/dispatcher"
	"github.com/clawrouter/clawrouter/internal/fallback"
	"github.com/clawrouter/clawrouter/internal/money"
	"github.com/clawrouter/clawrouter/internal/router"
)

// defaultMaxTokens is used for cost estimation whenever a request omits
// max_tokens (spec.md §4.2's cost estimate needs some bound).
const defaultMaxTokens = 4096

type handler struct {
	deps Deps
}

// chatEnvelope is the minimal shape handlers need out of an
// OpenAI-compatible chat-completions body; every other field is forwarded
// upstream with its value unchanged by the dispatcher's model rewrite.
type chatEnvelope struct {
	Model       string          `json:"model"`
	Messages    []rawMessage    `json:"messages"`
	MaxTokens   *int            `json:"max_tokens"`
	Temperature *float64        `json:"temperature"`
	Seed        *int            `json:"seed"`
	Stream      bool            `json:"stream"`
	SessionID   string          `json:"session_id"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
}

// dispatchError carries a terminal (non-success) dispatcher.Result
// through dedup.Cache.Do's error return, so the HTTP handler can answer
// with the upstream's own status and body instead of a generic 502.
type dispatchError struct {
	result dispatcher.Result
}

func (e *dispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: kind=%s status=%d model=%s", e.result.Kind, e.result.Status, e.result.Model)
}

func (h *handler) chatCompletions(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read request body"})
		return
	}

	var env chatEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	sessionID := env.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get("X-Session-Id")
	}

	maxTokens := defaultMaxTokens
	if env.MaxTokens != nil && *env.MaxTokens > 0 {
		maxTokens = *env.MaxTokens
	}

	tags := classifier.Classify(classifier.Input{
		Messages:  toClassifierMessages(env.Messages),
		MaxTokens: maxTokens,
	})

	decision := h.deps.Router.Route(router.Request{
		RequestedModel: env.Model,
		SessionID:      sessionID,
		MaxTokens:      maxTokens,
		Tags:           tags,
	})

	ctx, cancel := context.WithTimeout(r.Context(), fallback.TotalDeadline)
	defer cancel()

	preAuthFor := func(model string) money.USD {
		return money.CostFromPricePerMillion(h.deps.Catalog.PriceForMillion(model), maxTokens)
	}

	attemptIndex := 0
	dispatch := func(attemptCtx context.Context, model string, preAuth money.USD) dispatcher.Result {
		h.deps.Stats.RecordAttempt(model)
		if attemptIndex > 0 {
			h.deps.Stats.RecordFallbackEngaged(model)
		}
		attemptIndex++

		result := h.deps.Dispatcher.Dispatch(attemptCtx, rawBody, model, preAuth, r.Header)
		switch result.Kind {
		case dispatcher.KindSuccess:
			h.deps.Stats.RecordSuccess(model)
		case dispatcher.KindPaymentFailed:
			h.deps.Stats.RecordWrappedPaymentFailure(model)
		}
		return result
	}

	var outcome fallback.Outcome
	var body []byte
	var fromCache bool

	if env.Stream {
		// Streaming requests bypass the dedup cache: each is unique
		// by definition of being a live interaction, and caching a
		// partial SSE stream body would be incorrect (spec.md §4.5).
		outcome = fallback.Run(ctx, decision.CandidateChain, preAuthFor, dispatch)
		body = outcome.Result.Body
	} else {
		fingerprint := dedup.Fingerprint(dedup.FingerprintInput{
			Model:       decision.PrimaryModel,
			Messages:    env.Messages,
			MaxTokens:   env.MaxTokens,
			Temperature: env.Temperature,
			Seed:        env.Seed,
		})

		if cached, ok := h.deps.Dedup.Lookup(ctx, fingerprint); ok {
			body = cached
			fromCache = true
			outcome = fallback.Outcome{Result: dispatcher.Result{Kind: dispatcher.KindSuccess, Status: http.StatusOK, Body: cached, Model: decision.PrimaryModel}}
		} else {
			answeredBy := decision.PrimaryModel
			cachedBody, doErr, _ := h.deps.Dedup.Do(ctx, fingerprint, func() ([]byte, error) {
				o := fallback.Run(ctx, decision.CandidateChain, preAuthFor, dispatch)
				if o.Result.Kind != dispatcher.KindSuccess {
					return nil, &dispatchError{result: o.Result}
				}
				answeredBy = o.Result.Model
				return o.Result.Body, nil
			})
			if doErr != nil {
				if de, ok := doErr.(*dispatchError); ok {
					outcome = fallback.Outcome{Result: de.result}
				} else {
					outcome = fallback.Outcome{Result: dispatcher.Result{Kind: dispatcher.KindTransportError, Status: http.StatusBadGateway, Body: []byte(doErr.Error())}}
				}
				body = outcome.Result.Body
			} else {
				body = cachedBody
				outcome = fallback.Outcome{Result: dispatcher.Result{Kind: dispatcher.KindSuccess, Status: http.StatusOK, Body: cachedBody, Model: answeredBy}}
			}
		}
	}

	// A response served from the completed cache, or shared from another
	// request's in-flight call, does not carry the id of the candidate
	// that answered it; the primary model is pinned in that case.
	if outcome.Result.Kind == dispatcher.KindSuccess && sessionID != "" {
		finalModel := outcome.Result.Model
		if finalModel == "" {
			finalModel = decision.PrimaryModel
		}
		h.deps.Pins.Set(sessionID, decision.TierProfile, finalModel)
	}

	h.deps.Audit.Record(r.Context(), audit.Entry{
		SessionID:       sessionID,
		TierProfile:     decision.TierProfile,
		PrimaryModel:    decision.PrimaryModel,
		FinalModel:      outcome.Result.Model,
		FallbackCount:   len(outcome.AttemptedIDs),
		PaymentMode:     h.deps.Backend.Mode(),
		CostEstimateUSD: decision.CostEstimate.Float64(),
		StatusCode:      outcome.Result.Status,
		ErrorKind:       string(outcome.Result.Kind),
	})

	w.Header().Set("X-ClawRouter-Model", decision.PrimaryModel)
	w.Header().Set("X-ClawRouter-Tier", string(decision.Tier))
	if fromCache {
		w.Header().Set("X-ClawRouter-Cache", "hit")
	} else {
		w.Header().Set("X-ClawRouter-Cache", "miss")
	}

	status := outcome.Result.Status
	if status == 0 {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// modelEntry extends the OpenAI-compatible openai.Model shape (the
// teacher's own wire format for listing models, see
// providers/openai.go) with ClawRouter's routing metadata.
type modelEntry struct {
	openai.Model
	Tier            string   `json:"tier"`
	PricePerMillion float64  `json:"price_per_million"`
	Capabilities    []string `json:"capabilities"`
}

func (h *handler) listModels(w http.ResponseWriter, r *http.Request) {
	models := h.deps.Catalog.All()
	out := make([]modelEntry, 0, len(models)+4)
	for _, m := range models {
		var caps []string
		for c, ok := range m.Capabilities {
			if ok {
				caps = append(caps, string(c))
			}
		}
		vendor := m.ID
		if idx := strings.Index(m.ID, "/"); idx >= 0 {
			vendor = m.ID[:idx]
		}
		out = append(out, modelEntry{
			Model: openai.Model{
				ID:      m.ID,
				Object:  "model",
				OwnedBy: vendor,
			},
			Tier:            string(m.Tier),
			PricePerMillion: h.deps.Catalog.PriceForMillion(m.ID),
			Capabilities:    caps,
		})
	}

	aliases := []string{router.AliasAuto, router.AliasEco, router.AliasPremium, router.AliasFree}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":  out,
		"aliases": aliases,
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok", "wallet": h.deps.WalletAddress}

	if r.URL.Query().Get("full") == "true" && h.deps.Balance != nil {
		snap, ok := h.deps.Balance.Latest()
		if ok {
			resp["wallet_balance_usd"] = snap.BalanceUSD.Float64()
			resp["wallet_low"] = snap.IsLow
			resp["wallet_empty"] = snap.IsEmpty
			resp["sampled_at"] = snap.SampledAt
		} else {
			resp["wallet_balance"] = "unknown"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":       h.deps.Stats.Snapshot(),
		"active_pins":  h.deps.Pins.Len(),
		"payment_mode": h.deps.Backend.Mode(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toClassifierMessages(raw []rawMessage) []classifier.Message {
	out := make([]classifier.Message, 0, len(raw))
	for _, m := range raw {
		text, nonText := extractContent(m.Content)
		out = append(out, classifier.Message{Role: m.Role, Content: text, NonText: nonText})
	}
	return out
}

// extractContent handles both the plain-string content shape and the
// multi-part content array shape (vision/audio messages) OpenAI-style
// clients send.
func extractContent(raw json.RawMessage) (text string, nonText bool) {
	if len(raw) == 0 {
		return "", false
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, false
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", false
	}

	var builder strings.Builder
	for _, part := range parts {
		var p contentPart
		if err := json.Unmarshal(part, &p); err != nil {
			continue
		}
		switch p.Type {
		case "text":
			var textPart struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(part, &textPart); err == nil {
				builder.WriteString(textPart.Text)
				builder.WriteString("\n")
			}
		case "image_url", "input_audio", "image", "audio":
			nonText = true
		}
	}
	return builder.String(), nonText
}
