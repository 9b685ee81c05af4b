package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurorazk/darkpool/params"
	"github.com/aurorazk/darkpool/pkg/api"
	"github.com/aurorazk/darkpool/pkg/book"
	"github.com/aurorazk/darkpool/pkg/chain"
	"github.com/aurorazk/darkpool/pkg/engine"
	"github.com/aurorazk/darkpool/pkg/notify"
	"github.com/aurorazk/darkpool/pkg/observability"
	"github.com/aurorazk/darkpool/pkg/settle"
	"github.com/aurorazk/darkpool/pkg/storage"
	"github.com/aurorazk/darkpool/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Core: book and matching engine ----
	ob := book.New(cfg.Matching.DustEpsilon)
	eng := engine.New(ob, sugar)

	// ---- Chain client ----
	// DRY_RUN skips the RPC client so the matcher can run without a funded
	// keypair; settlements then fail and dead-letter.
	var chainClient chain.Client
	if os.Getenv("DRY_RUN") == "true" {
		sugar.Warn("dry run enabled - settlements will not reach the chain")
		chainClient = chain.NoopClient{}
	} else {
		rpcClient, err := chain.NewRPCClient(
			cfg.Chain.RPCEndpoint,
			cfg.Chain.ProgramID,
			cfg.Chain.KeypairPath,
			sugar,
		)
		if err != nil {
			sugar.Fatalw("chain_client_init_failed", "err", err)
		}
		chainClient = rpcClient
		sugar.Infow("chain_client_ready",
			"rpc", cfg.Chain.RPCEndpoint,
			"program", cfg.Chain.ProgramID)
	}

	// ---- Trade journal ----
	journal, err := storage.OpenJournal(cfg.JournalPath)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "path", cfg.JournalPath, "err", err)
	}
	defer journal.Close()

	// ---- Settlement pipeline ----
	recon := settle.NewReconciler(chainClient, cfg.Chain.SubmitTimeout, sugar)
	notifier := notify.New(ob, sugar)
	queue := settle.NewQueue(recon, notifier, journal, settle.QueueConfig{
		DrainDelay:  cfg.Settlement.DrainDelay,
		MaxAttempts: cfg.Settlement.MaxAttempts,
		BackoffBase: cfg.Settlement.BackoffBase,
		BackoffCap:  cfg.Settlement.BackoffCap,
	}, sugar)

	metrics := observability.NewMetrics()
	queue.OnOutcome = func(outcome string) {
		metrics.Settlements.WithLabelValues(outcome).Inc()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go queue.Run(ctx)
	go notifier.Run(ctx, cfg.StatsHeartbeat)

	// ---- API Server ----
	apiServer := api.NewServer(api.ServerConfig{
		Book:      ob,
		Engine:    eng,
		Queue:     queue,
		Notifier:  notifier,
		Journal:   journal,
		Metrics:   metrics,
		AutoMatch: cfg.Matching.AutoMatch,
		Log:       sugar,
	})

	go func() {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("matcher_started",
		"api_addr", cfg.APIAddr,
		"auto_match", cfg.Matching.AutoMatch,
		"drain_delay_ms", cfg.Settlement.DrainDelay.Milliseconds(),
		"max_attempts", cfg.Settlement.MaxAttempts)

	<-ctx.Done()
	sugar.Info("shutting down")
}
