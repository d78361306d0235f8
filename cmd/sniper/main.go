package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "sniper",
		Short:        "Mempool-driven token sniper",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the mempool and trade on triggers",
		RunE:  runSniper,
	}
	addRunFlags(runCmd.Flags())
	root.AddCommand(runCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the coordination record and journal totals of a run",
		RunE:  runStatus,
	}
	addStoreFlags(statusCmd.Flags())
	root.AddCommand(statusCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("run-id", "default", "run id shared by cooperating instances")
	flags.String("coord-backend", "file", "coordination backend (file, redis, postgres, memory)")
	flags.String("coord-dir", "./cache", "directory of the file coordination record")
	flags.String("redis-addr", "", "Redis address for the redis backend")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("journal-backend", "jsonl", "submission journal (jsonl, postgres, none)")
	flags.String("journal", "./data/submissions.jsonl", "JSONL journal path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addRunFlags(flags *pflag.FlagSet) {
	addStoreFlags(flags)

	flags.String("rpc", "", "websocket RPC URL")
	flags.String("node-id", "", "id of this instance in the coordination record (default host-pid)")
	flags.String("router", "", "DEX router address")
	flags.String("wrapped", "", "wrapped native token address (default asks the router)")
	flags.String("symbol", "ETH", "native currency symbol used in router method names")
	flags.Bool("fee-market", false, "start with fee-market gas instead of legacy gas price")

	flags.StringSlice("private-keys", nil, "private keys, the first one signs (comma-separated)")
	flags.Bool("include-sender", true, "the signing wallet also receives bought tokens")
	flags.Uint64("gas-limit", 500000, "gas limit of every transaction")

	flags.String("mode", "listing", "trigger mode (listing, pinksale, dev-action, auto-magic, follow-wallets, instant-buy, instant-sell, approve)")
	flags.String("purchase-token", "", "token to buy")
	flags.String("liquidity-token", "", "token paid with")
	flags.String("sell-token", "", "token to sell in instant-sell mode")
	flags.String("minimum-liquidity", "", "minimum liquidity added, in liquidity token units")
	flags.String("buy-amount", "", "amount of liquidity token spent per round")
	flags.StringSlice("liquidity-tokens", nil, "candidate liquidity tokens as token:minimum:maximum (comma-separated)")

	flags.String("dev-wallet", "", "developer wallet watched in pinksale and dev-action modes")
	flags.StringSlice("dev-action-ids", nil, "method ids that trigger in dev-action mode")
	flags.StringSlice("dev-action-ignore-ids", nil, "method ids dev-action mode never learns")
	flags.Bool("dev-action-sell", false, "sell instead of buy on a dev action")
	flags.Int("gas-action", 1, "0 uses static gas on dev actions, otherwise outbid")
	flags.StringSlice("listing-ids", nil, "method ids of enable-trading calls for auto-magic")

	flags.Bool("auto-magic-liquidity-add", false, "auto-magic reacts to liquidity adds")
	flags.Bool("auto-magic-method-id", false, "auto-magic reacts to listing method ids")
	flags.Bool("auto-magic-pinksale", false, "auto-magic reacts to launchpad finalize calls")

	flags.StringSlice("follow-wallets", nil, "wallets to copy (comma-separated)")
	flags.StringSlice("follow-action-tokens", nil, "tokens the followed wallets pay with (comma-separated)")
	flags.String("follow-max-gas", "0", "ignore followed transactions priced at or above this, in gwei")

	flags.Bool("anti-rug-pull", false, "sell on rug pull signals while holding")
	flags.Bool("toxic-detection", false, "learn and react to toxic method ids")
	flags.StringSlice("toxic-ids", nil, "known toxic method ids")
	flags.StringSlice("non-toxic-ids", nil, "method ids never treated as toxic")
	flags.String("balance-check-multiplier", "1", "rug pull fires when a removal exceeds balance times this")
	flags.String("sell-on-gain", "0", "sell at this gain in percent, 0 disables")
	flags.String("sell-threshold-fall", "0", "trailing stop fall from the high in percent, 0 disables")
	flags.String("sell-percentage", "0", "share of the balance sold, 0 sells everything")
	flags.String("sell-amount", "", "fixed amount sold, overrides sell-percentage")
	flags.Bool("sell-approve", false, "approve the spender right after buying")
	flags.String("approve-to", "router", "spender approved before selling: router or an address")
	flags.Bool("stop-after-first-tx", false, "exit after the first cycle")

	flags.Bool("auto-gas", true, "outbid the trigger transaction instead of using static gas")
	flags.String("gas-price", "0", "static legacy gas price in gwei")
	flags.String("priority-gas", "0", "static priority fee in gwei")
	flags.String("gas-multiplier", "1", "gas multiplier for outbidding and retries")

	flags.Duration("wait-before-first-buy", 0, "delay before the first buy round")
	flags.Duration("delay-between-buys", 0, "delay between buy rounds")
	flags.Int("rounds-to-buy", 1, "buy rounds per trigger")
	flags.Int("retry-rounds", 0, "retries of failed buy or sell attempts")
	flags.Duration("retry-delay", time.Second, "delay before a retry")
	flags.Uint64("blocks-delay", 0, "buy this many blocks after the trigger")

	flags.Duration("reconnect-backoff", 3*time.Second, "wait before redialing a lost websocket")
	flags.Float64("fetch-rate", 200, "pending transaction fetches per second, 0 is unlimited")
	flags.Int("fetch-burst", 50, "pending transaction fetch burst")
	flags.Int("detector-workers", 4, "detectors evaluated in parallel per transaction")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Bool("control", true, "read Ctrl+C and Ctrl+N from the terminal")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
