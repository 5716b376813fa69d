// Command clawrouter runs the ClawRouter proxy: load config, start the
// proxy, and wait for a shutdown signal, the same shape as the
// teacher's cmd/gateway/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clawrouter/clawrouter/internal/config"
	"github.com/clawrouter/clawrouter/internal/proxy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	p, err := proxy.Start(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clawrouter: failed to start:", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "clawrouter: shutdown error:", err)
		os.Exit(1)
	}
}
