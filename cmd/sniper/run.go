package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquiditySniper/internal/builder"
	"liquiditySniper/internal/chain"
	"liquiditySniper/internal/config"
	"liquiditySniper/internal/control"
	"liquiditySniper/internal/coord"
	"liquiditySniper/internal/detect"
	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/dispatch"
	"liquiditySniper/internal/loop"
	"liquiditySniper/internal/metrics"
	"liquiditySniper/internal/model"
	"liquiditySniper/internal/scheduler"
	"liquiditySniper/internal/storage"
	"liquiditySniper/internal/storage/postgres"
	"liquiditySniper/internal/supervisor"
)

func runSniper(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ForceSingleShot() {
		logger.Info("stop-after-first-tx turned on because a sell protection is enabled")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = defaultNodeID()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := chain.NewClient(cfg.RPCURL)
	defer client.Close()

	sniperMetrics := metrics.NewSniperMetrics()
	registry := prometheus.NewRegistry()
	if err := sniperMetrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mainLoop := loop.New(ctx, logger)
	var (
		dispatcher *dispatch.Dispatcher
		sched      *scheduler.Scheduler
	)
	sup := supervisor.New(client, supervisor.Handlers{
		OnPending: func(hash common.Hash) { dispatcher.OnPending(hash) },
		OnBlock: func(number uint64) {
			mainLoop.Post(func() { sched.OnBlock(number) })
		},
	}, cfg.ReconnectBackoff, logger, sniperMetrics)
	if err := sup.Connect(ctx); err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}

	wallet, err := chain.NewWallet(client, cfg.PrivateKeys[0], cfg.GasLimit)
	if err != nil {
		return err
	}
	recipients, err := recipientAddresses(cfg.PrivateKeys, cfg.IncludeSender)
	if err != nil {
		return err
	}

	router := common.HexToAddress(cfg.Router)
	quoter, err := dex.NewQuoter(client, router, cfg.Symbol)
	if err != nil {
		return err
	}
	wrapped, err := resolveWrapped(ctx, cfg.WrappedNative, quoter)
	if err != nil {
		return err
	}
	decoder, err := dex.NewCallDecoder(cfg.Symbol)
	if err != nil {
		return err
	}
	txBuilder, err := builder.New(builder.Config{
		Router:        router,
		WrappedNative: wrapped,
		Symbol:        cfg.Symbol,
		Self:          wallet.Address(),
		Recipients:    recipients,
	})
	if err != nil {
		return err
	}

	settings, err := buildSettings(ctx, cfg, quoter, decoder, client, wallet.Address(), router, wrapped)
	if err != nil {
		return err
	}

	store, err := coord.Open(ctx, coord.Options{
		Backend:   cfg.CoordBackend,
		RunID:     cfg.RunID,
		Dir:       cfg.CoordDir,
		RedisAddr: cfg.RedisAddr,
		RedisPass: cfg.RedisPassword,
		RedisDB:   cfg.RedisDB,
		PgDSN:     cfg.PgDSN,
	})
	if err != nil {
		return fmt.Errorf("open coordination store: %w", err)
	}
	defer store.Close()
	gate := coord.NewGate(store, cfg.NodeID)

	journal, closeJournal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	sched = scheduler.New(settings, scheduler.Deps{
		Loop:    mainLoop,
		Gate:    gate,
		Sender:  wallet,
		Market:  quoter,
		Builder: txBuilder,
		Journal: journal,
		Metrics: sniperMetrics,
		Logger:  logger,
	})
	dispatcher = dispatch.New(mainLoop, sched, client, gate, dispatch.Options{
		FetchRate:  cfg.FetchRate,
		FetchBurst: cfg.FetchBurst,
		Workers:    cfg.DetectorWorkers,
	}, logger, sniperMetrics)

	logStartup(ctx, logger, cfg, wallet, recipients)
	for _, token := range []*common.Address{settings.PurchaseToken, settings.LiquidityToken} {
		if token == nil {
			continue
		}
		if meta, err := quoter.TokenMeta(ctx, *token, logger); err == nil {
			logger.Info("token",
				zap.String("address", meta.Address.Hex()),
				zap.String("symbol", meta.Symbol),
				zap.String("name", meta.Name),
				zap.Uint8("decimals", meta.Decimals),
			)
		}
	}

	group, groupCtx := errgroup.WithContext(mainLoop.Context())
	group.Go(func() error {
		if err := sup.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			mainLoop.Stop(err)
			return err
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return metrics.Serve(groupCtx, cfg.MetricsAddr, registry, logger)
		})
	}
	if cfg.Control {
		restore, err := control.RawTerminal(os.Stdin)
		if err != nil {
			logger.Warn("terminal control unavailable", zap.Error(err))
		} else {
			defer restore()
			logger.Info("press Ctrl+C to stop every instance, Ctrl+N to sell now")
			group.Go(func() error {
				return control.Listen(groupCtx, os.Stdin, mainLoop, sched, logger)
			})
		}
	}

	mainLoop.Post(sched.Start)
	if number, err := client.BlockNumber(ctx); err == nil {
		mainLoop.Post(func() { sched.OnBlock(number) })
	}
	runErr := mainLoop.Run()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("background task failed", zap.Error(err))
	}
	return exitError(runErr)
}

// exitError maps the loop result onto the process exit status.
func exitError(err error) error {
	switch {
	case err == nil,
		errors.Is(err, loop.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, model.ErrCoordinationLoss):
		return nil
	default:
		return err
	}
}

func buildSettings(ctx context.Context, cfg config.Config, quoter *dex.Quoter, decoder *dex.CallDecoder, client *chain.Client, self, router, wrapped common.Address) (scheduler.Settings, error) {
	var settings scheduler.Settings

	purchaseInput := cfg.PurchaseToken
	if cfg.Mode == model.ModeInstantSell {
		purchaseInput = cfg.SellToken
	}
	purchase, err := config.ParseOptionalAddress(purchaseInput)
	if err != nil {
		return settings, err
	}
	liquidity, err := config.ParseOptionalAddress(cfg.LiquidityToken)
	if err != nil {
		return settings, err
	}
	devWallet, err := config.ParseOptionalAddress(cfg.DevWallet)
	if err != nil {
		return settings, err
	}
	followWallets, err := config.ParseAddresses(cfg.FollowWallets)
	if err != nil {
		return settings, err
	}
	followTokens, err := config.ParseAddresses(cfg.FollowActionTokens)
	if err != nil {
		return settings, err
	}

	var devIDs, devIgnore, listingIDs, toxicIDs, nonToxicIDs model.SelectorSet
	for _, entry := range []struct {
		input  []string
		target *model.SelectorSet
	}{
		{cfg.DevActionIDs, &devIDs},
		{cfg.DevActionIgnoreIDs, &devIgnore},
		{cfg.ListingIDs, &listingIDs},
		{cfg.ToxicIDs, &toxicIDs},
		{cfg.NonToxicIDs, &nonToxicIDs},
	} {
		set, err := config.ParseSelectors(entry.input)
		if err != nil {
			return settings, err
		}
		*entry.target = set
	}

	candidates, err := liquidityCandidates(ctx, quoter, cfg.LiquidityTokens)
	if err != nil {
		return settings, err
	}
	var minimum *big.Int
	if cfg.MinimumLiquidity != "" && liquidity != nil {
		decimals, err := quoter.Decimals(ctx, *liquidity)
		if err != nil {
			return settings, fmt.Errorf("liquidity token decimals: %w", err)
		}
		if minimum, err = dex.ParseUnits(cfg.MinimumLiquidity, decimals); err != nil {
			return settings, err
		}
	}

	spender := router
	if cfg.ApproveTo != "router" {
		spender = common.HexToAddress(cfg.ApproveTo)
	}

	var followMax *model.GasOverride
	if limit := config.Gwei(cfg.FollowMaxGas); limit != nil {
		followMax = &model.GasOverride{GasPrice: limit, GasFeeCap: new(big.Int).Set(limit)}
	}

	return scheduler.Settings{
		RunID:      cfg.RunID,
		Mode:       cfg.Mode,
		SingleShot: cfg.StopAfterFirstTx,

		AntiRugPull:   cfg.AntiRugPull,
		GainBps:       detect.PercentToBps(cfg.SellOnGain),
		FallPct:       cfg.SellThresholdFall,
		DevActionSell: cfg.DevActionSell,
		SellApprove:   cfg.SellApprove,
		Spender:       spender,

		BuyAmount:      cfg.BuyAmount,
		SellPercentage: cfg.SellPercentage,
		SellAmount:     cfg.SellAmount,

		RoundsToBuy:        cfg.RoundsToBuy,
		RetryRounds:        cfg.RetryRounds,
		WaitBeforeFirstBuy: cfg.WaitBeforeFirstBuy,
		DelayBetweenBuys:   cfg.DelayBetweenBuys,
		RetryDelay:         cfg.RetryDelay,
		BlocksDelay:        cfg.BlocksDelay,

		AutoGas:       cfg.AutoGas,
		GasMultiplier: cfg.GasMultiplier,
		GasPrice:      config.Gwei(cfg.GasPrice),
		PriorityGas:   config.Gwei(cfg.PriorityGas),
		FeeMarket:     cfg.FeeMarket,

		PurchaseToken:  purchase,
		LiquidityToken: liquidity,
		DevWallet:      devWallet,
		DevSelectors:   devIDs,
		ToxicSelectors: toxicIDs,

		Detect: detect.Context{
			Self:          self,
			Router:        router,
			WrappedNative: wrapped,

			GasMultiplier:    cfg.GasMultiplier,
			MinimumLiquidity: minimum,

			BalanceCheckMultiplier: cfg.BalanceCheckMultiplier,
			ToxicDetection:         cfg.ToxicDetection,
			NonToxicSelectors:      nonToxicIDs,

			DevActionIgnore: devIgnore,
			GasAction:       cfg.GasAction,

			FollowWallets: followWallets,
			FollowTokens:  followTokens,
			FollowMaxGas:  followMax,

			AutoMagic: detect.AutoMagicOptions{
				LiquidityAdd: cfg.AutoMagicLiquidityAdd,
				MethodID:     cfg.AutoMagicMethodID,
				Pinksale:     cfg.AutoMagicPinksale,
			},
			ListingSelectors: listingIDs,
			Candidates:       candidates,

			Decoder:   decoder,
			Market:    quoter,
			Confirmer: client,
		},
	}, nil
}

// liquidityCandidates converts liquidity-tokens entries into base units.
func liquidityCandidates(ctx context.Context, quoter *dex.Quoter, inputs []string) ([]detect.LiquidityCandidate, error) {
	specs, err := config.ParseLiquidityTokens(inputs)
	if err != nil {
		return nil, err
	}
	out := make([]detect.LiquidityCandidate, 0, len(specs))
	for _, spec := range specs {
		decimals, err := quoter.Decimals(ctx, spec.Address)
		if err != nil {
			return nil, fmt.Errorf("decimals of %s: %w", spec.Address.Hex(), err)
		}
		candidate := detect.LiquidityCandidate{Token: spec.Address}
		if spec.Minimum != "" {
			if candidate.Minimum, err = dex.ParseUnits(spec.Minimum, decimals); err != nil {
				return nil, err
			}
		}
		if spec.Maximum != "" {
			if candidate.Maximum, err = dex.ParseUnits(spec.Maximum, decimals); err != nil {
				return nil, err
			}
		}
		out = append(out, candidate)
	}
	return out, nil
}

func resolveWrapped(ctx context.Context, configured string, quoter *dex.Quoter) (common.Address, error) {
	if configured != "" {
		return common.HexToAddress(configured), nil
	}
	wrapped, err := quoter.WrappedNative(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve wrapped native token: %w", err)
	}
	return wrapped, nil
}

// recipientAddresses derives the addresses that receive bought tokens. The
// first key is the signer and only receives when includeSender is set.
func recipientAddresses(keys []string, includeSender bool) ([]common.Address, error) {
	var out []common.Address
	for i, key := range keys {
		if i == 0 && !includeSender {
			continue
		}
		priv, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(key), "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key %d: %w", i, err)
		}
		out = append(out, crypto.PubkeyToAddress(priv.PublicKey))
	}
	return out, nil
}

func openJournal(ctx context.Context, cfg config.Config) (storage.Journal, func(), error) {
	switch cfg.JournalBackend {
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		return store, store.Close, nil
	case "none":
		return storage.Nop{}, func() {}, nil
	default:
		return storage.NewJsonlJournal(cfg.Journal), func() {}, nil
	}
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func logStartup(ctx context.Context, logger *zap.Logger, cfg config.Config, wallet *chain.Wallet, recipients []common.Address) {
	fields := []zap.Field{
		zap.String("rpc", cfg.RPCURL),
		zap.String("node", cfg.NodeID),
		zap.String("run", cfg.RunID),
		zap.String("mode", string(cfg.Mode)),
		zap.String("wallet", wallet.Address().Hex()),
		zap.Int("recipients", len(recipients)),
		zap.Int("rounds", cfg.RoundsToBuy),
		zap.Bool("stop_after_first_tx", cfg.StopAfterFirstTx),
	}
	if nonce, err := wallet.Nonce(ctx); err == nil {
		fields = append(fields, zap.Uint64("nonce", nonce))
	}
	if balance, err := wallet.Balance(ctx); err == nil {
		fields = append(fields, zap.String("balance", dex.FormatUnits(balance, 18)+" "+cfg.Symbol))
	}
	logger.Info("sniper start", fields...)
}
