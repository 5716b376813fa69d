// Package config loads and validates ClawRouter's typed configuration
// from environment variables (spec.md §6), optionally preloaded from a
// .env file via github.com/joho/godotenv (the teacher's library),
// generalized from the teacher's internal/shared/config package to the
// new variable set.
package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// PaymentMode selects the payment backend variant (spec.md §4.6).
type PaymentMode string

const (
	PaymentModeWallet     PaymentMode = "wallet"
	PaymentModeClawCredit PaymentMode = "clawcredit"
)

// Defaults from spec.md §6.
const (
	DefaultPort          = "8402"
	DefaultClawCreditURL = "https://api.claw.credit"
	DefaultChain         = "BASE"
	// DefaultAsset is the Base-network USDC contract address.
	DefaultAsset = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

// Config is ClawRouter's fully validated, typed configuration.
type Config struct {
	Port string

	PaymentMode PaymentMode

	// Wallet mode.
	WalletPrivateKey *ecdsa.PrivateKey
	WalletChainID    string

	// claw.credit mode.
	ClawCreditBaseURL string
	ClawCreditAPIToken string
	ClawCreditChain    string
	ClawCreditAsset    string

	// Ambient, both optional.
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	// BalanceRPCURL points at the JSON-RPC endpoint the balance
	// monitor polls; empty disables the monitor in tests/dev.
	BalanceRPCURL string
}

// ConfigError is spec.md §7's fatal config_error kind: missing/invalid
// env at startup.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "config_error: " + e.Message }

// Load reads and validates configuration from the environment,
// optionally preloaded from a .env file (ignored if absent, matching
// the teacher's godotenv.Load() call).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("BLOCKRUN_PROXY_PORT", DefaultPort),
		PaymentMode:   PaymentMode(strings.ToLower(getEnv("BLOCKRUN_PAYMENT_MODE", string(PaymentModeWallet)))),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		BalanceRPCURL: getEnv("BLOCKRUN_BALANCE_RPC_URL", ""),
	}

	switch cfg.PaymentMode {
	case PaymentModeWallet:
		keyHex := getEnv("BLOCKRUN_WALLET_KEY", "")
		if keyHex == "" {
			return nil, &ConfigError{Message: "BLOCKRUN_WALLET_KEY is required in wallet mode (key generation/persistence is handled by the setup wrapper, not this process)"}
		}
		priv, err := parsePrivateKey(keyHex)
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("invalid BLOCKRUN_WALLET_KEY: %v", err)}
		}
		cfg.WalletPrivateKey = priv
		cfg.WalletChainID = strings.ToUpper(getEnv("CLAWCREDIT_PAYMENT_CHAIN", DefaultChain))

	case PaymentModeClawCredit:
		cfg.ClawCreditAPIToken = getEnv("CLAWCREDIT_API_TOKEN", "")
		if cfg.ClawCreditAPIToken == "" {
			return nil, &ConfigError{Message: "CLAWCREDIT_API_TOKEN is required when BLOCKRUN_PAYMENT_MODE=clawcredit"}
		}
		cfg.ClawCreditBaseURL = getEnv("CLAWCREDIT_BASE_URL", DefaultClawCreditURL)
		cfg.ClawCreditChain = strings.ToUpper(getEnv("CLAWCREDIT_PAYMENT_CHAIN", DefaultChain))
		cfg.ClawCreditAsset = getEnv("CLAWCREDIT_PAYMENT_ASSET", DefaultAsset)

	default:
		return nil, &ConfigError{Message: fmt.Sprintf("unknown BLOCKRUN_PAYMENT_MODE %q (want wallet or clawcredit)", cfg.PaymentMode)}
	}

	return cfg, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("not valid hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty key")
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("key out of curve range")
	}

	priv := new(ecdsa.PrivateKey)
	priv.Curve = curve
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return priv, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
