package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfactory-lab/omnisol/internal/chain"
	"github.com/mfactory-lab/omnisol/internal/ingestion"
	"github.com/mfactory-lab/omnisol/internal/liquidator"
	"github.com/mfactory-lab/omnisol/internal/observability"
	"github.com/mfactory-lab/omnisol/internal/signer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: liquidator worker starting...")

	nodeURL := envOrDefault("OMNISOL_NODE_URL", "http://localhost:8080")
	natsURL := envOrDefault("OMNISOL_NATS_URL", "nats://localhost:4222")
	keypairPath := envOrDefault("OMNISOL_KEYPAIR_PATH", "liquidator.key")
	interval := envDurationOrDefault("OMNISOL_LIQUIDATOR_INTERVAL", 15*time.Second)

	sig, err := signer.Load(keypairPath)
	if err != nil {
		log.Fatalf("FATAL: load keypair: %v", err)
	}
	if seq := os.Getenv("OMNISOL_SIGNER_SEQUENCE"); seq != "" {
		sig.SetSequence(envInt64(seq))
	}
	log.Printf("INFO: liquidator authority %s", sig.Wallet())

	nc, _, err := ingestion.ConnectNATS(natsURL)
	if err != nil {
		log.Fatalf("FATAL: nats connect: %v", err)
	}
	defer nc.Close()

	client := chain.NewHTTPClient(nodeURL, nc, sig)
	metrics := observability.NewMetrics()

	worker := liquidator.NewWorker(client, metrics, interval)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("FATAL: liquidator worker: %v", err)
	}
	log.Println("INFO: liquidator worker shutdown complete")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envInt64(v string) int64 {
	var i int64
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return 0
	}
	return i
}
