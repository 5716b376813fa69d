// Package balance implements the wallet balance monitor (C10): a
// periodic poller that samples the wallet's USD balance on-chain and
// publishes the latest snapshot for the health endpoint and the router's
// auto-tier downgrade logic to read without blocking on the RPC.
package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/clawrouter/clawrouter/internal/money"
)

// Thresholds from spec.md §4.10.
const (
	EmptyThresholdUSD = 0.01
	LowThresholdUSD   = 1.00
)

// DefaultInterval is the poll interval (spec.md §4.10 default 60s).
const DefaultInterval = 60 * time.Second

// RPCTimeout bounds a single balance RPC call (spec.md §5).
const RPCTimeout = 10 * time.Second

// Snapshot is the latest observed wallet balance.
type Snapshot struct {
	BalanceUSD money.USD
	IsLow      bool
	IsEmpty    bool
	SampledAt  time.Time
	Err        error
}

// RPCClient fetches a raw USD balance for an address on a chain. The
// production implementation issues a JSON-RPC eth_call / eth_getBalance
// style request; no blockchain SDK appears anywhere in the reference
// corpus, so this is a minimal stdlib net/http JSON-RPC client rather
// than an adopted ecosystem library (documented in DESIGN.md).
type RPCClient interface {
	FetchBalanceUSD(ctx context.Context, address, chainID string) (float64, error)
}

// HTTPRPCClient is the default RPCClient, speaking a simple JSON-RPC
// envelope over HTTP.
type HTTPRPCClient struct {
	Endpoint   string
	HTTPClient *http.Client
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type jsonRPCResponse struct {
	Result float64 `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchBalanceUSD implements RPCClient.
func (c *HTTPRPCClient) FetchBalanceUSD(ctx context.Context, address, chainID string) (float64, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: RPCTimeout}
	}
	reqBody, _ := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "clawrouter_getUsdBalance",
		Params:  []interface{}{address, chainID},
		ID:      1,
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("balance rpc: %w", err)
	}
	defer resp.Body.Close()

	var out jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("balance rpc: decode: %w", err)
	}
	if out.Error != nil {
		return 0, fmt.Errorf("balance rpc: %s", out.Error.Message)
	}
	return out.Result, nil
}

// Monitor polls an RPCClient on an interval and publishes the latest
// Snapshot for lock-free concurrent reads.
type Monitor struct {
	client   RPCClient
	address  string
	chainID  string
	interval time.Duration

	latest atomic.Pointer[Snapshot]

	onLowBalance        func(Snapshot)
	onInsufficientFunds func(Snapshot)

	stop chan struct{}
	done chan struct{}
}

// Options configures a Monitor.
type Options struct {
	Interval            time.Duration
	OnLowBalance        func(Snapshot)
	OnInsufficientFunds func(Snapshot)
}

// New builds a Monitor for the given wallet address/chain. Call Start to
// begin polling; the monitor does nothing until Start is called.
func New(client RPCClient, address, chainID string, opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		client:              client,
		address:             address,
		chainID:             chainID,
		interval:            interval,
		onLowBalance:        opts.OnLowBalance,
		onInsufficientFunds: opts.OnInsufficientFunds,
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
	}
}

// Start begins the polling loop in a background goroutine. It samples
// once immediately so the first /health?full=true call after boot has a
// snapshot to read.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Close stops the polling loop and waits for it to exit.
func (m *Monitor) Close() {
	close(m.stop)
	<-m.done
}

// Latest returns the most recent snapshot, or (Snapshot{}, false) if no
// sample has completed yet. The request path must treat a missing
// snapshot as "unknown, proceed" (spec.md §9) — never block on it.
func (m *Monitor) Latest() (Snapshot, bool) {
	p := m.latest.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// IsWalletEmpty implements router.BalanceReader without the router
// package needing to know the Snapshot shape.
func (m *Monitor) IsWalletEmpty() (empty bool, ok bool) {
	snap, ok := m.Latest()
	if !ok {
		return false, false
	}
	return snap.IsEmpty, true
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.sample(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	rpcCtx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	prev, hadPrev := m.Latest()

	balanceUSD, err := m.client.FetchBalanceUSD(rpcCtx, m.address, m.chainID)
	if err != nil {
		snap := Snapshot{SampledAt: time.Now(), Err: err}
		if hadPrev {
			snap.BalanceUSD = prev.BalanceUSD
			snap.IsLow = prev.IsLow
			snap.IsEmpty = prev.IsEmpty
		}
		m.latest.Store(&snap)
		return
	}

	snap := Snapshot{
		BalanceUSD: money.FromFloat(balanceUSD),
		IsLow:      balanceUSD <= LowThresholdUSD,
		IsEmpty:    balanceUSD <= EmptyThresholdUSD,
		SampledAt:  time.Now(),
	}
	m.latest.Store(&snap)

	wasLow := hadPrev && prev.IsLow
	wasEmpty := hadPrev && prev.IsEmpty

	if snap.IsEmpty && !wasEmpty && m.onInsufficientFunds != nil {
		m.onInsufficientFunds(snap)
	}
	if snap.IsLow && !snap.IsEmpty && !wasLow && m.onLowBalance != nil {
		m.onLowBalance(snap)
	}
}
