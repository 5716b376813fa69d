package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clawrouter/clawrouter/internal/money"
)

// PayCallTimeout bounds the claw.credit pay-call (spec.md §5, 60s).
const PayCallTimeout = 60 * time.Second

// sdkName/sdkVersion identify this module in the pay-call's sdk_meta
// block (spec.md §4.6.b).
const (
	sdkName    = "clawrouter"
	sdkVersion = "1.x"
)

// strippedHeaders are removed from the embedded request before it is
// wrapped in the pay-call envelope (spec.md §4.6.b).
var strippedHeaders = map[string]bool{
	"host":           true,
	"content-length": true,
	"connection":     true,
}

// ClawCreditContext holds the custodial backend's configuration.
type ClawCreditContext struct {
	BaseURL  string
	APIToken string
	Chain    string
	Asset    string
}

// ClawCreditBackend proxies payment through the claw.credit custodial
// service instead of calling the inference endpoint directly.
type ClawCreditBackend struct {
	ctx        ClawCreditContext
	httpClient *http.Client
}

// NewClawCreditBackend builds a ClawCreditBackend.
func NewClawCreditBackend(ctx ClawCreditContext, httpClient *http.Client) *ClawCreditBackend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: PayCallTimeout}
	}
	return &ClawCreditBackend{ctx: ctx, httpClient: httpClient}
}

// Mode implements Backend.
func (b *ClawCreditBackend) Mode() string { return ModeClawCredit }

type payTransaction struct {
	Recipient string  `json:"recipient"`
	Amount    string  `json:"amount"`
	Chain     string  `json:"chain"`
	Asset     string  `json:"asset"`
}

type payHTTPEnvelope struct {
	URL     string              `json:"url"`
	Method  string              `json:"method"`
	Headers map[string][]string `json:"headers"`
}

type payRequestBody struct {
	HTTP payHTTPEnvelope `json:"http"`
	Body interface{}     `json:"body"`
}

type payAuditContext struct {
	CurrentTask      string `json:"current_task"`
	ReasoningProcess string `json:"reasoning_process"`
	Timestamp        string `json:"timestamp"`
}

type paySDKMeta struct {
	SDKName    string `json:"sdk_name"`
	SDKVersion string `json:"sdk_version"`
}

type payEnvelope struct {
	Transaction  payTransaction  `json:"transaction"`
	RequestBody  payRequestBody  `json:"request_body"`
	AuditContext payAuditContext `json:"audit_context"`
	SDKMeta      paySDKMeta      `json:"sdk_meta"`
}

type payWrapperResponse struct {
	MerchantResponse json.RawMessage `json:"merchant_response"`
}

// Invoke implements Backend: POSTs the pay-call envelope to
// {base_url}/v1/transaction/pay and unwraps merchant_response.
func (b *ClawCreditBackend) Invoke(ctx context.Context, req UpstreamRequest, preAuth money.USD) (*Response, error) {
	var parsedBody interface{}
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &parsedBody); err != nil {
			parsedBody = string(req.Body)
		}
	}

	headers := make(map[string][]string)
	for k, vs := range req.Header {
		if strippedHeaders[strings.ToLower(k)] {
			continue
		}
		headers[k] = vs
	}

	amount := preAuth.RoundedString(0.01)

	envelope := payEnvelope{
		Transaction: payTransaction{
			Recipient: req.URL,
			Amount:    amount,
			Chain:     b.ctx.Chain,
			Asset:     b.ctx.Asset,
		},
		RequestBody: payRequestBody{
			HTTP: payHTTPEnvelope{URL: req.URL, Method: req.Method, Headers: headers},
			Body: parsedBody,
		},
		AuditContext: payAuditContext{
			CurrentTask:      "chat_completion",
			ReasoningProcess: "clawrouter cost-aware routing",
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
		},
		SDKMeta: paySDKMeta{SDKName: sdkName, SDKVersion: sdkVersion},
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	payURL := strings.TrimRight(b.ctx.BaseURL, "/") + "/v1/transaction/pay"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, payURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.ctx.APIToken)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Non-2xx from /v1/transaction/pay propagates with its own
		// status and body (spec.md §4.6.b).
		return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
	}

	var wrapper payWrapperResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("claw.credit: malformed pay-call response: %w", err)
	}
	if len(wrapper.MerchantResponse) == 0 {
		return nil, fmt.Errorf("claw.credit: pay-call response missing merchant_response")
	}

	return &Response{StatusCode: http.StatusOK, Body: wrapper.MerchantResponse, Header: resp.Header}, nil
}
