package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/nodeapp"
	"github.com/coreledger/node/internal/orchestrator"
	"github.com/coreledger/node/internal/platform/logger"
	"github.com/coreledger/node/internal/wallet"
	"go.uber.org/zap"
)

// build is the git version of this program, set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Chain struct {
			DataDir           string `conf:"default:zblock/chain.db"`
			RetainedVersions  int    `conf:"default:10"`
			MinFee            uint64 `conf:"default:0"`
			MempoolBound      int    `conf:"default:5000"`
			BlockMaxTxs       int    `conf:"default:2000"`
			BlockMaxSize      int    `conf:"default:1048576"`
			CoinbaseReward    uint64 `conf:"default:50"`
			CoinbaseMaturity  int64  `conf:"default:100"`
			TargetBlockTime   int64  `conf:"default:15"`
			MaxFutureDrift    int64  `conf:"default:15"`
			NumWorkers        int    `conf:"default:4"`
			InitialSupply     uint64 `conf:"default:1000000"`
			GenesisTimestamp  int64  `conf:"default:1700000000"`
		}
		Miner struct {
			KeyPath string `conf:"default:zblock/miner.ecdsa"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Miner Key

	signer, err := wallet.LoadKeyFile(cfg.Miner.KeyPath)
	if err != nil {
		log.Infow("startup", "status", "no miner key found, generating one", "path", cfg.Miner.KeyPath)
		signer, err = wallet.GenerateKeySigner()
		if err != nil {
			return fmt.Errorf("generating miner key: %w", err)
		}
		if err := signer.Save(cfg.Miner.KeyPath); err != nil {
			return fmt.Errorf("saving miner key: %w", err)
		}
	}
	log.Infow("startup", "status", "miner key loaded", "pubkey", chain.PubKeyHex(signer.PublicKey()))

	// =========================================================================
	// Node

	evHandler := logger.Adapt(log)

	node, err := nodeapp.New(nodeapp.Config{
		DataDir:          cfg.Chain.DataDir,
		RetainedVersions: cfg.Chain.RetainedVersions,
		MinFee:           cfg.Chain.MinFee,
		MempoolBound:     cfg.Chain.MempoolBound,
		BlockMaxTxs:      cfg.Chain.BlockMaxTxs,
		BlockMaxSize:     cfg.Chain.BlockMaxSize,
		CoinbaseReward:   cfg.Chain.CoinbaseReward,
		CoinbaseMaturity: chain.Height(cfg.Chain.CoinbaseMaturity),
		TargetBlockTime:  cfg.Chain.TargetBlockTime,
		MaxFutureDrift:   cfg.Chain.MaxFutureDrift,
		NumWorkers:       cfg.Chain.NumWorkers,
		InitialSupply:    cfg.Chain.InitialSupply,
		GenesisTimestamp: cfg.Chain.GenesisTimestamp,
	}, signer, orchestrator.EventHandler(evHandler))
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	node.Start(ctx)
	log.Infow("startup", "status", "node started", "height", node.State.Height())

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Infow("shutdown", "status", "shutdown started")
	cancel()
	if err := node.Stop(); err != nil {
		return fmt.Errorf("stopping node: %w", err)
	}

	return nil
}
