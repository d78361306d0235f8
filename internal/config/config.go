package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"liquiditySniper/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL   string
	NodeID   string
	RunID    string
	LogLevel string

	Router        string
	WrappedNative string
	Symbol        string
	FeeMarket     bool

	PrivateKeys   []string
	IncludeSender bool
	GasLimit      uint64

	Mode             model.Mode
	PurchaseToken    string
	LiquidityToken   string
	SellToken        string
	MinimumLiquidity string
	BuyAmount        string
	LiquidityTokens  []string

	DevWallet          string
	DevActionIDs       []string
	DevActionIgnoreIDs []string
	DevActionSell      bool
	GasAction          int
	ListingIDs         []string

	AutoMagicLiquidityAdd bool
	AutoMagicMethodID     bool
	AutoMagicPinksale     bool

	FollowWallets      []string
	FollowActionTokens []string
	FollowMaxGas       decimal.Decimal

	AntiRugPull            bool
	ToxicDetection         bool
	ToxicIDs               []string
	NonToxicIDs            []string
	BalanceCheckMultiplier decimal.Decimal
	SellOnGain             decimal.Decimal
	SellThresholdFall      decimal.Decimal
	SellPercentage         decimal.Decimal
	SellAmount             string
	SellApprove            bool
	ApproveTo              string
	StopAfterFirstTx       bool

	AutoGas       bool
	GasPrice      decimal.Decimal
	PriorityGas   decimal.Decimal
	GasMultiplier decimal.Decimal

	WaitBeforeFirstBuy time.Duration
	DelayBetweenBuys   time.Duration
	RoundsToBuy        int
	RetryRounds        int
	RetryDelay         time.Duration
	BlocksDelay        uint64

	CoordBackend   string
	CoordDir       string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PgDSN          string
	JournalBackend string
	Journal        string

	ReconnectBackoff time.Duration
	FetchRate        float64
	FetchBurst       int
	DetectorWorkers  int
	MetricsAddr      string
	Control          bool
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("run-id", "default")
	v.SetDefault("log-level", "info")
	v.SetDefault("symbol", "ETH")
	v.SetDefault("include-sender", true)
	v.SetDefault("gas-limit", uint64(500000))
	v.SetDefault("mode", string(model.ModeListing))
	v.SetDefault("gas-action", 1)
	v.SetDefault("balance-check-multiplier", "1")
	v.SetDefault("approve-to", "router")
	v.SetDefault("auto-gas", true)
	v.SetDefault("gas-multiplier", "1")
	v.SetDefault("rounds-to-buy", 1)
	v.SetDefault("retry-delay", time.Second)
	v.SetDefault("coord-backend", "file")
	v.SetDefault("coord-dir", "./cache")
	v.SetDefault("journal-backend", "jsonl")
	v.SetDefault("journal", "./data/submissions.jsonl")
	v.SetDefault("reconnect-backoff", 3*time.Second)
	v.SetDefault("fetch-rate", 200.0)
	v.SetDefault("fetch-burst", 50)
	v.SetDefault("detector-workers", 4)
	v.SetDefault("control", true)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:   v.GetString("rpc"),
		NodeID:   v.GetString("node-id"),
		RunID:    v.GetString("run-id"),
		LogLevel: v.GetString("log-level"),

		Router:        v.GetString("router"),
		WrappedNative: v.GetString("wrapped"),
		Symbol:        v.GetString("symbol"),
		FeeMarket:     v.GetBool("fee-market"),

		PrivateKeys:   getStringSlice(v, "private-keys"),
		IncludeSender: v.GetBool("include-sender"),
		GasLimit:      v.GetUint64("gas-limit"),

		Mode:             model.Mode(strings.ToLower(v.GetString("mode"))),
		PurchaseToken:    v.GetString("purchase-token"),
		LiquidityToken:   v.GetString("liquidity-token"),
		SellToken:        v.GetString("sell-token"),
		MinimumLiquidity: v.GetString("minimum-liquidity"),
		BuyAmount:        v.GetString("buy-amount"),
		LiquidityTokens:  getStringSlice(v, "liquidity-tokens"),

		DevWallet:          v.GetString("dev-wallet"),
		DevActionIDs:       getStringSlice(v, "dev-action-ids"),
		DevActionIgnoreIDs: getStringSlice(v, "dev-action-ignore-ids"),
		DevActionSell:      v.GetBool("dev-action-sell"),
		GasAction:          v.GetInt("gas-action"),
		ListingIDs:         getStringSlice(v, "listing-ids"),

		AutoMagicLiquidityAdd: v.GetBool("auto-magic-liquidity-add"),
		AutoMagicMethodID:     v.GetBool("auto-magic-method-id"),
		AutoMagicPinksale:     v.GetBool("auto-magic-pinksale"),

		FollowWallets:      getStringSlice(v, "follow-wallets"),
		FollowActionTokens: getStringSlice(v, "follow-action-tokens"),

		AntiRugPull:      v.GetBool("anti-rug-pull"),
		ToxicDetection:   v.GetBool("toxic-detection"),
		ToxicIDs:         getStringSlice(v, "toxic-ids"),
		NonToxicIDs:      getStringSlice(v, "non-toxic-ids"),
		SellAmount:       v.GetString("sell-amount"),
		SellApprove:      v.GetBool("sell-approve"),
		ApproveTo:        v.GetString("approve-to"),
		StopAfterFirstTx: v.GetBool("stop-after-first-tx"),

		AutoGas: v.GetBool("auto-gas"),

		WaitBeforeFirstBuy: v.GetDuration("wait-before-first-buy"),
		DelayBetweenBuys:   v.GetDuration("delay-between-buys"),
		RoundsToBuy:        v.GetInt("rounds-to-buy"),
		RetryRounds:        v.GetInt("retry-rounds"),
		RetryDelay:         v.GetDuration("retry-delay"),
		BlocksDelay:        v.GetUint64("blocks-delay"),

		CoordBackend:   v.GetString("coord-backend"),
		CoordDir:       v.GetString("coord-dir"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisPassword:  v.GetString("redis-password"),
		RedisDB:        v.GetInt("redis-db"),
		PgDSN:          v.GetString("pg-dsn"),
		JournalBackend: v.GetString("journal-backend"),
		Journal:        v.GetString("journal"),

		ReconnectBackoff: v.GetDuration("reconnect-backoff"),
		FetchRate:        v.GetFloat64("fetch-rate"),
		FetchBurst:       v.GetInt("fetch-burst"),
		DetectorWorkers:  v.GetInt("detector-workers"),
		MetricsAddr:      v.GetString("metrics-addr"),
		Control:          v.GetBool("control"),
	}

	for _, field := range []struct {
		key    string
		target *decimal.Decimal
	}{
		{"follow-max-gas", &cfg.FollowMaxGas},
		{"balance-check-multiplier", &cfg.BalanceCheckMultiplier},
		{"sell-on-gain", &cfg.SellOnGain},
		{"sell-threshold-fall", &cfg.SellThresholdFall},
		{"sell-percentage", &cfg.SellPercentage},
		{"gas-price", &cfg.GasPrice},
		{"priority-gas", &cfg.PriorityGas},
		{"gas-multiplier", &cfg.GasMultiplier},
	} {
		value, err := getDecimal(v, field.key)
		if err != nil {
			return Config{}, err
		}
		*field.target = value
	}

	return cfg, nil
}

// ForceSingleShot turns on StopAfterFirstTx when a sell-side protection is
// enabled. It reports whether the setting changed.
func (c *Config) ForceSingleShot() bool {
	if c.StopAfterFirstTx {
		return false
	}
	if c.AntiRugPull || c.SellOnGain.IsPositive() {
		c.StopAfterFirstTx = true
		return true
	}
	return false
}

// getDecimal reads key as a decimal number. Unset keys are zero.
func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	text := strings.TrimSpace(v.GetString(key))
	if text == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number, got %q", model.ErrConfig, key, text)
	}
	return value, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
