package payment

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clawrouter/clawrouter/internal/money"
)

// AttemptTimeout bounds a single upstream HTTP call (spec.md §5,
// min(remaining_budget, 60s) — the 60s ceiling is enforced here; the
// per-attempt remaining-budget floor is enforced by the fallback
// executor, which derives a shorter context deadline per step).
const AttemptTimeout = 60 * time.Second

// WalletContext holds the wallet's signing material. Never logged —
// callers must route all logging through internal/logging.Redact, which
// replaces the private key's hex form once it has been registered with
// logging.RegisterSecret (internal/proxy does this at startup).
type WalletContext struct {
	PrivateKey    *ecdsa.PrivateKey
	PublicAddress string
	ChainID       string
}

// WalletBackend attaches an x402 payment header signed with the
// wallet's private key directly to the upstream inference call.
type WalletBackend struct {
	wallet     WalletContext
	httpClient *http.Client
}

// NewWalletBackend builds a WalletBackend. httpClient may be nil, in
// which case a client with AttemptTimeout is constructed.
func NewWalletBackend(wallet WalletContext, httpClient *http.Client) *WalletBackend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: AttemptTimeout}
	}
	return &WalletBackend{wallet: wallet, httpClient: httpClient}
}

// Mode implements Backend.
func (b *WalletBackend) Mode() string { return ModeWallet }

// Invoke implements Backend: signs a payment pre-authorization and
// issues the HTTP request directly to req.URL.
func (b *WalletBackend) Invoke(ctx context.Context, req UpstreamRequest, preAuth money.USD) (*Response, error) {
	header, err := b.signPayment(preAuth)
	if err != nil {
		return nil, fmt.Errorf("x402 sign: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("X-Payment", header)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

// signPayment builds the "x402 <payload>" header value: a base64
// envelope of signature || address || chain, signed over
// sha256(address || chain || amount). No blockchain/wallet SDK appears
// anywhere in the reference corpus, so this uses stdlib crypto/ecdsa
// directly rather than an adopted ecosystem signer (see DESIGN.md).
func (b *WalletBackend) signPayment(preAuth money.USD) (string, error) {
	if b.wallet.PrivateKey == nil {
		return "", fmt.Errorf("wallet not configured")
	}
	payload := fmt.Sprintf("%s|%s|%d", b.wallet.PublicAddress, b.wallet.ChainID, preAuth.Micros())
	digest := sha256.Sum256([]byte(payload))

	r, s, err := ecdsa.Sign(rand.Reader, b.wallet.PrivateKey, digest[:])
	if err != nil {
		return "", err
	}
	sigHex := hex.EncodeToString(r.Bytes()) + hex.EncodeToString(s.Bytes())

	envelope := fmt.Sprintf("%s.%s.%s", sigHex, b.wallet.PublicAddress, b.wallet.ChainID)
	return "x402 " + base64.StdEncoding.EncodeToString([]byte(envelope)), nil
}

// TransportError signals a network/TLS/timeout failure reaching the
// upstream (spec.md §7's transport_error kind).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// PublicAddressFromKey derives a wallet address from a private key: the
// last 20 bytes of sha256 over the uncompressed public point, hex-encoded
// with a "0x" prefix. The address is reported by /health, signed into the
// x402 payment header, and passed to the balance monitor. Wallet key
// generation/persistence itself is an external
// collaborator's responsibility (spec.md §1 Out of scope) — this helper
// only formats a key this process was handed.
func PublicAddressFromKey(priv *ecdsa.PrivateKey) string {
	if priv == nil {
		return ""
	}
	pub := elliptic.Marshal(priv.Curve, priv.PublicKey.X, priv.PublicKey.Y)
	sum := sha256.Sum256(pub)
	return "0x" + hex.EncodeToString(sum[12:])
}
