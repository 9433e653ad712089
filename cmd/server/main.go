package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Subham-Satapathy/lunchpad/internal/config"
	"github.com/Subham-Satapathy/lunchpad/internal/ledger"
	"github.com/Subham-Satapathy/lunchpad/internal/mintauth"
	"github.com/Subham-Satapathy/lunchpad/internal/replay"
	"github.com/Subham-Satapathy/lunchpad/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// A service without a usable authority must not accept traffic.
	authority, err := mintauth.LoadAuthority(cfg.Chain.MintAuthorityKey)
	if err != nil {
		log.Fatalf("mint authority error: %v", err)
	}

	var store replay.Store
	if cfg.Service.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgStore, err := replay.NewPostgresStore(ctx, cfg.Service.PostgresDSN)
		cancel()
		if err != nil {
			log.Fatalf("replay store error: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		fileStore, err := replay.NewFileStore(cfg.Service.ReplayStorePath)
		if err != nil {
			log.Fatalf("replay store error: %v", err)
		}
		store = fileStore
	}

	chain, err := ledger.NewSolanaClient(ledger.SolanaClientConfig{
		RPCURL:       cfg.Chain.RPCURL,
		TokenMint:    cfg.Chain.TokenMint,
		Authority:    authority.Account(),
		PollInterval: cfg.Timeouts.ConfirmPollInterval,
	})
	if err != nil {
		log.Fatalf("ledger client error: %v", err)
	}

	mintSvc := mintauth.NewService(
		chain,
		store,
		cfg.Chain.PaymentAccount,
		cfg.Launch.Pricing.PricePerToken,
		cfg.Retry,
		cfg.Timeouts,
	)

	apiServer := server.NewServer(cfg, mintSvc, chain, store)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(ctx)
}
