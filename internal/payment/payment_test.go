package payment

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawrouter/clawrouter/internal/money"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestWalletBackend_AttachesXPaymentHeader(t *testing.T) {
	var gotHeader string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Payment")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	wallet := WalletContext{PrivateKey: testKey(t), PublicAddress: "0xabc", ChainID: "BASE"}
	b := NewWalletBackend(wallet, upstream.Client())

	resp, err := b.Invoke(context.Background(), UpstreamRequest{URL: upstream.URL, Method: http.MethodPost, Body: []byte(`{}`)}, money.FromFloat(0.05))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Regexp(t, `^x402 `, gotHeader)
}

func TestWalletBackend_MissingKeyErrors(t *testing.T) {
	b := NewWalletBackend(WalletContext{}, nil)
	_, err := b.Invoke(context.Background(), UpstreamRequest{URL: "http://example.invalid"}, money.USD{})
	assert.Error(t, err)
}

func TestWalletBackend_TransportErrorWrapped(t *testing.T) {
	b := NewWalletBackend(WalletContext{PrivateKey: testKey(t), PublicAddress: "0xabc", ChainID: "BASE"}, http.DefaultClient)
	_, err := b.Invoke(context.Background(), UpstreamRequest{URL: "http://127.0.0.1:1", Method: http.MethodPost}, money.USD{})
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestPublicAddressFromKey_Deterministic(t *testing.T) {
	key := testKey(t)
	a := PublicAddressFromKey(key)
	b := PublicAddressFromKey(key)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestClawCreditBackend_WrapsRequestInPayEnvelope(t *testing.T) {
	var captured map[string]interface{}
	merchant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		body, _ := json.Marshal(map[string]interface{}{})
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = body
		w.WriteHeader(http.StatusOK)
		resp, _ := json.Marshal(map[string]interface{}{"merchant_response": map[string]interface{}{"id": "chatcmpl-1"}})
		_, _ = w.Write(resp)
	}))
	defer merchant.Close()

	cc := ClawCreditContext{BaseURL: merchant.URL, APIToken: "test-token", Chain: "BASE", Asset: "0xusdc"}
	b := NewClawCreditBackend(cc, merchant.Client())

	resp, err := b.Invoke(context.Background(), UpstreamRequest{
		URL:    "https://api.blockrun.ai/v1/chat/completions",
		Method: http.MethodPost,
		Header: http.Header{"Host": []string{"api.blockrun.ai"}, "Accept": []string{"application/json"}},
		Body:   []byte(`{"model":"m"}`),
	}, money.FromFloat(0.5))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "chatcmpl-1")

	txn := captured["transaction"].(map[string]interface{})
	assert.Equal(t, "BASE", txn["chain"])
	assert.Equal(t, "0xusdc", txn["asset"])

	reqBody := captured["request_body"].(map[string]interface{})
	httpEnvelope := reqBody["http"].(map[string]interface{})
	headers := httpEnvelope["headers"].(map[string]interface{})
	_, hasHost := headers["Host"]
	assert.False(t, hasHost, "Host header must be stripped before embedding")
}

func TestClawCreditBackend_NonSuccessPropagatesVerbatim(t *testing.T) {
	merchant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"insufficient credit"}`))
	}))
	defer merchant.Close()

	cc := ClawCreditContext{BaseURL: merchant.URL, APIToken: "test-token"}
	b := NewClawCreditBackend(cc, merchant.Client())

	resp, err := b.Invoke(context.Background(), UpstreamRequest{URL: "https://x", Method: http.MethodPost, Body: []byte(`{}`)}, money.USD{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "insufficient credit")
}
