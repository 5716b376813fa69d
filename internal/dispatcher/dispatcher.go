package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clawrouter/clawrouter/internal/money"
	"github.com/clawrouter/clawrouter/internal/payment"
)

// wrappedPaymentMarker is the literal token that, anywhere in a response
// body, signals a wrapped payment failure regardless of HTTP status
// (spec.md §9 — "must not rely on upstream status == 402").
const wrappedPaymentMarker = "x402_payment_failed"

// UpstreamURL is BlockRun's chat-completions endpoint.
const UpstreamURL = "https://api.blockrun.ai/v1/chat/completions"

// Result is what one dispatch attempt produces.
type Result struct {
	Kind   ErrorKind
	Status int
	Body   []byte
	Model  string
}

// Dispatcher executes one candidate model against one payment backend.
type Dispatcher struct {
	backend payment.Backend
}

// New builds a Dispatcher bound to backend.
func New(backend payment.Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

// Dispatch rewrites originalBody's "model" field to candidateModel,
// invokes the payment backend, and classifies the response per
// spec.md §4.7.
func (d *Dispatcher) Dispatch(ctx context.Context, originalBody []byte, candidateModel string, preAuth money.USD, clientHeaders http.Header) Result {
	body, err := rewriteModel(originalBody, candidateModel)
	if err != nil {
		return Result{Kind: KindClientError, Status: http.StatusBadRequest, Body: []byte(err.Error()), Model: candidateModel}
	}

	req := payment.UpstreamRequest{
		URL:    UpstreamURL,
		Method: http.MethodPost,
		Header: forwardableHeaders(clientHeaders),
		Body:   body,
	}

	resp, err := d.backend.Invoke(ctx, req, preAuth)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Kind: KindTransportError, Status: 0, Body: []byte(ctx.Err().Error()), Model: candidateModel}
		}
		return Result{Kind: KindTransportError, Status: 0, Body: []byte(err.Error()), Model: candidateModel}
	}

	return classify(resp, candidateModel)
}

func classify(resp *payment.Response, model string) Result {
	base := Result{Status: resp.StatusCode, Body: resp.Body, Model: model}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if bytes.Contains(resp.Body, []byte(wrappedPaymentMarker)) {
			// A 2xx body should never carry the marker, but treat it
			// as authoritative regardless of status per spec.md §9.
			base.Kind = KindPaymentFailed
			return base
		}
		base.Kind = KindSuccess
		return base
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		base.Kind = KindPaymentFailed
		return base
	}

	if bytes.Contains(resp.Body, []byte(wrappedPaymentMarker)) {
		base.Kind = KindPaymentFailed
		return base
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		if looksLikeProviderError(resp.Body) {
			base.Kind = KindProviderError
			return base
		}
		base.Kind = KindClientError
		return base
	}

	// 5xx
	base.Kind = KindProviderError
	return base
}

func looksLikeProviderError(body []byte) bool {
	lower := strings.ToLower(string(body))
	if strings.Contains(lower, `"type":"provider_error"`) || strings.Contains(lower, `"type": "provider_error"`) {
		return true
	}
	billingCues := []string{"insufficient", "billing", "credit", "quota", "overloaded", "rate limit", "capacity"}
	for _, cue := range billingCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// rewriteModel rewrites only the "model" field of a JSON body; every
// other top-level field keeps its value, carried over as raw JSON. The
// body is re-encoded from a map, so top-level keys come out in sorted
// order and insignificant whitespace is dropped.
func rewriteModel(body []byte, model string) ([]byte, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, err
	}
	encodedModel, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}
	generic["model"] = encodedModel
	return json.Marshal(generic)
}

// forwardableHeaders copies the subset of client headers that should be
// forwarded upstream (content negotiation), never Authorization — the
// payment backend attaches its own credentials.
func forwardableHeaders(h http.Header) http.Header {
	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	if accept := h.Get("Accept"); accept != "" {
		out.Set("Accept", accept)
	}
	return out
}
