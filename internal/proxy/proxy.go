// Package proxy owns ClawRouter's process lifecycle: every long-lived
// component (catalog, router, caches, payment backend, balance monitor,
// HTTP server) is constructed once in Start and torn down together in
// Close, mirroring the teacher's cmd/gateway/main.go wiring but pulled
// into a package so cmd/clawrouter/main.go stays a thin entry point.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/clawrouter/clawrouter/internal/audit"
	"github.com/clawrouter/clawrouter/internal/balance"
	"github.com/clawrouter/clawrouter/internal/catalog"
	"github.com/clawrouter/clawrouter/internal/config"
	"github.com/clawrouter/clawrouter/internal/db"
	"github.com/clawrouter/clawrouter/internal/dedup"
	"github.com/clawrouter/clawrouter/internal/dispatcher"
	"github.com/clawrouter/clawrouter/internal/httpapi"
	"github.com/clawrouter/clawrouter/internal/logging"
	"github.com/clawrouter/clawrouter/internal/payment"
	"github.com/clawrouter/clawrouter/internal/pinstore"
	"github.com/clawrouter/clawrouter/internal/pricing"
	"github.com/clawrouter/clawrouter/internal/redisclient"
	"github.com/clawrouter/clawrouter/internal/router"
	"github.com/clawrouter/clawrouter/internal/stats"
)

// Proxy holds every long-lived component and the HTTP server bound to
// them.
type Proxy struct {
	cfg    *config.Config
	logger zerolog.Logger

	httpServer *http.Server

	balanceMonitor *balance.Monitor
	redisClient    *redisclient.Client
	sharedDB       *db.DB
}

// Start builds every component from cfg and begins serving HTTP. Callers
// must eventually call Close.
func Start(cfg *config.Config) (*Proxy, error) {
	logger := logging.New(cfg.LogLevel)

	if cfg.WalletPrivateKey != nil {
		logging.RegisterSecret(fmt.Sprintf("%x", cfg.WalletPrivateKey.D))
	}
	if cfg.ClawCreditAPIToken != "" {
		logging.RegisterSecret(cfg.ClawCreditAPIToken)
	}

	p := &Proxy{cfg: cfg, logger: logger}

	var sharedDB *db.DB
	if cfg.DatabaseURL != "" {
		conn, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		sharedDB = conn
	}
	p.sharedDB = sharedDB

	overlay := catalog.PricingOverlay(pricing.NoopOverlay{})
	if sharedDB != nil {
		overlay = pricing.NewPostgresOverlay(sharedDB)
	}

	cat := catalog.New(overlay)

	pins := pinstore.New(pinstore.DefaultTTL, pinstore.DefaultMaxEntries)

	var walletAddress string
	if cfg.PaymentMode == config.PaymentModeWallet {
		walletAddress = payment.PublicAddressFromKey(cfg.WalletPrivateKey)
	}

	var balanceMonitor *balance.Monitor
	backend, err := buildPaymentBackend(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.PaymentMode == config.PaymentModeWallet && cfg.BalanceRPCURL != "" {
		client := &balance.HTTPRPCClient{Endpoint: cfg.BalanceRPCURL}
		balanceMonitor = balance.New(client, walletAddress, cfg.WalletChainID, balance.Options{
			OnInsufficientFunds: func(snap balance.Snapshot) {
				logger.Warn().Float64("balance_usd", snap.BalanceUSD.Float64()).Msg("wallet balance depleted, auto routing will downgrade to free tier")
			},
			OnLowBalance: func(snap balance.Snapshot) {
				logger.Warn().Float64("balance_usd", snap.BalanceUSD.Float64()).Msg("wallet balance low")
			},
		})
		balanceMonitor.Start(context.Background())
	}
	p.balanceMonitor = balanceMonitor

	rt := router.New(cat, pins, balanceReaderOf(balanceMonitor))

	completedStore, redisClient, err := buildCompletedStore(cfg)
	if err != nil {
		return nil, err
	}
	p.redisClient = redisClient
	dedupCache := dedup.New(completedStore, dedup.DefaultTTL)

	disp := dispatcher.New(backend)

	statsRegistry := stats.New()

	auditSink := audit.Sink(audit.NoopSink{})
	if sharedDB != nil {
		auditSink = audit.NewPostgresSink(sharedDB)
	}

	handlerDeps := httpapi.Deps{
		Catalog:       cat,
		Router:        rt,
		Pins:          pins,
		Dedup:         dedupCache,
		Backend:       backend,
		Dispatcher:    disp,
		Stats:         statsRegistry,
		Audit:         auditSink,
		Balance:       balanceMonitor,
		WalletAddress: walletAddress,
		Logger:        logger,
	}

	mux := httpapi.NewRouter(handlerDeps)
	p.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 135 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info().Str("port", cfg.Port).Str("payment_mode", string(cfg.PaymentMode)).Msg("clawrouter starting")

	go func() {
		if err := p.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()

	return p, nil
}

// Close shuts down the HTTP server and every backing connection.
func (p *Proxy) Close(ctx context.Context) error {
	if p.balanceMonitor != nil {
		p.balanceMonitor.Close()
	}
	if p.httpServer != nil {
		if err := p.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.redisClient != nil {
		_ = p.redisClient.Close()
	}
	if p.sharedDB != nil {
		_ = p.sharedDB.Close()
	}
	return nil
}

func buildPaymentBackend(cfg *config.Config) (payment.Backend, error) {
	switch cfg.PaymentMode {
	case config.PaymentModeWallet:
		wallet := payment.WalletContext{
			PrivateKey:    cfg.WalletPrivateKey,
			PublicAddress: payment.PublicAddressFromKey(cfg.WalletPrivateKey),
			ChainID:       cfg.WalletChainID,
		}
		return payment.NewWalletBackend(wallet, nil), nil
	case config.PaymentModeClawCredit:
		cc := payment.ClawCreditContext{
			BaseURL:  cfg.ClawCreditBaseURL,
			APIToken: cfg.ClawCreditAPIToken,
			Chain:    cfg.ClawCreditChain,
			Asset:    cfg.ClawCreditAsset,
		}
		return payment.NewClawCreditBackend(cc, nil), nil
	default:
		return nil, fmt.Errorf("unknown payment mode %q", cfg.PaymentMode)
	}
}

func buildCompletedStore(cfg *config.Config) (dedup.CompletedStore, *redisclient.Client, error) {
	if cfg.RedisURL == "" {
		return dedup.NewMemoryStore(dedup.DefaultMaxEntries, dedup.DefaultTTL), nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := redisclient.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return dedup.NewRedisStore(client), client, nil
}

func balanceReaderOf(m *balance.Monitor) router.BalanceReader {
	if m == nil {
		return nil
	}
	return m
}
