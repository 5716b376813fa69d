package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawrouter/clawrouter/internal/audit"
	"github.com/clawrouter/clawrouter/internal/catalog"
	"github.com/clawrouter/clawrouter/internal/dedup"
	"github.com/clawrouter/clawrouter/internal/dispatcher"
	"github.com/clawrouter/clawrouter/internal/money"
	"github.com/clawrouter/clawrouter/internal/payment"
	"github.com/clawrouter/clawrouter/internal/pinstore"
	"github.com/clawrouter/clawrouter/internal/router"
	"github.com/clawrouter/clawrouter/internal/stats"
)

// fixedBackend is a payment.Backend whose response per model is scripted
// ahead of time, so tests can simulate "model X fails, model Y
// succeeds" without any real upstream call.
type fixedBackend struct {
	responses       map[string]fixedResponse
	defaultResponse *fixedResponse
}

type fixedResponse struct {
	status int
	body   string
}

func (b *fixedBackend) Mode() string { return "fixed" }

func (b *fixedBackend) Invoke(_ context.Context, req payment.UpstreamRequest, _ money.USD) (*payment.Response, error) {
	var generic map[string]json.RawMessage
	_ = json.Unmarshal(req.Body, &generic)
	var model string
	_ = json.Unmarshal(generic["model"], &model)

	if r, ok := b.responses[model]; ok {
		return &payment.Response{StatusCode: r.status, Body: []byte(r.body)}, nil
	}
	if b.defaultResponse != nil {
		return &payment.Response{StatusCode: b.defaultResponse.status, Body: []byte(b.defaultResponse.body)}, nil
	}
	return &payment.Response{StatusCode: http.StatusNotImplemented, Body: []byte(`{"error":"unscripted model ` + model + `"}`)}, nil
}

func newTestDeps(t *testing.T, backend payment.Backend) Deps {
	t.Helper()
	cat := catalog.New(nil)
	pins := pinstore.New(time.Minute, 64)
	return Deps{
		Catalog:       cat,
		Router:        router.New(cat, pins, nil),
		Pins:          pins,
		Dedup:         dedup.New(dedup.NewMemoryStore(64, time.Minute), time.Minute),
		Backend:       backend,
		Dispatcher:    dispatcher.New(backend),
		Stats:         stats.New(),
		Audit:         audit.NoopSink{},
		WalletAddress: "0xtestwallet",
		Logger:        zerolog.Nop(),
	}
}

func doChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletions_PrimarySucceeds(t *testing.T) {
	backend := &fixedBackend{responses: map[string]fixedResponse{
		"anthropic/claude-opus-4-5": {status: 200, body: `{"id":"ok"}`},
	}}
	h := NewRouter(newTestDeps(t, backend))

	rec := doChat(t, h, `{"model":"premium","messages":[{"role":"user","content":"explain step by step why this works"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
	assert.Equal(t, "anthropic/claude-opus-4-5", rec.Header().Get("X-ClawRouter-Model"))
}

func TestChatCompletions_FallsBackWhenPrimaryFails(t *testing.T) {
	backend := &fixedBackend{responses: map[string]fixedResponse{
		"anthropic/claude-opus-4-5":   {status: 503, body: `{"error":"overloaded"}`},
		"anthropic/claude-sonnet-4-5": {status: 200, body: `{"id":"fallback-ok"}`},
		"openai/gpt-5":                {status: 200, body: `{"id":"unused"}`},
	}}
	h := NewRouter(newTestDeps(t, backend))

	rec := doChat(t, h, `{"model":"premium","messages":[{"role":"user","content":"prove this theorem step by step"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fallback-ok")
}

func TestChatCompletions_WrappedPaymentFailureFallsBackToEmergencyFree(t *testing.T) {
	backend := &fixedBackend{responses: map[string]fixedResponse{
		"meta/llama-3.3-70b":       {status: 200, body: `{"error":"x402_payment_failed"}`},
		catalog.EmergencyFreeModel: {status: 200, body: `{"id":"free-ok"}`},
	}}
	h := NewRouter(newTestDeps(t, backend))

	rec := doChat(t, h, `{"model":"meta/llama-3.3-70b","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "free-ok")
}

func TestChatCompletions_AllModelsFailReturnsProviderError(t *testing.T) {
	backend := &fixedBackend{defaultResponse: &fixedResponse{status: 503, body: `{"error":"down"}`}}
	h := NewRouter(newTestDeps(t, backend))

	rec := doChat(t, h, `{"model":"free","messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatCompletions_SessionPinPersistsAcrossCalls(t *testing.T) {
	backend := &fixedBackend{responses: map[string]fixedResponse{
		"anthropic/claude-opus-4-5": {status: 200, body: `{"id":"first"}`},
	}}
	h := NewRouter(newTestDeps(t, backend))

	rec1 := doChat(t, h, `{"model":"premium","messages":[{"role":"user","content":"prove this carefully"}],"session_id":"sess-a"}`)
	require.Equal(t, http.StatusOK, rec1.Code)
	assert.Equal(t, "anthropic/claude-opus-4-5", rec1.Header().Get("X-ClawRouter-Model"))

	rec2 := doChat(t, h, `{"model":"premium","messages":[{"role":"user","content":"just say hi"}],"session_id":"sess-a"}`)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "anthropic/claude-opus-4-5", rec2.Header().Get("X-ClawRouter-Model"))
}

func TestChatCompletions_ExplicitModelNormalized(t *testing.T) {
	backend := &fixedBackend{responses: map[string]fixedResponse{
		"deepseek/deepseek-chat": {status: 200, body: `{"id":"ok"}`},
	}}
	h := NewRouter(newTestDeps(t, backend))

	rec := doChat(t, h, `{"model":"  DEEPSEEK/deepseek-chat  ","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deepseek/deepseek-chat", rec.Header().Get("X-ClawRouter-Model"))
}

func TestListModels_IncludesAliases(t *testing.T) {
	h := NewRouter(newTestDeps(t, &fixedBackend{}))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auto")
	assert.Contains(t, rec.Body.String(), `"object":"model"`)
}

func TestHealth_OK(t *testing.T) {
	h := NewRouter(newTestDeps(t, &fixedBackend{}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
	assert.Contains(t, rec.Body.String(), "0xtestwallet")
}

func TestNotFound(t *testing.T) {
	h := NewRouter(newTestDeps(t, &fixedBackend{}))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
