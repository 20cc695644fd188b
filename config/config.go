// Package config loads folio settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/folio/internal/domain"
)

// Price sources.
const (
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
	// PlatformSimulate prices from Binance public market data, no keys required.
	PlatformSimulate = "simulate"
	// PlatformStatic prices from the static_prices table.
	PlatformStatic = "static"
)

// Ledger backends.
const (
	StorageWAL    = "wal"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

const (
	defaultPlatform        = PlatformSimulate
	defaultQuoteCurrency   = "USDT"
	defaultDisplayCurrency = "USD"
	defaultSeedBalance     = "10000"
	defaultMinLot          = "0.0001"
	defaultMaxLot          = "1000000"
	defaultStorage         = StorageWAL
	defaultStateDir        = "./wal/folio"
	defaultPriceTimeout    = 10 * time.Second
	defaultPriceRetries    = 2
	defaultPriceWorkers    = 4
	defaultRefresh         = time.Minute
	defaultWebAddr         = ":8080"
	defaultHyperliquidURL  = "https://api.hyperliquid.xyz"

	envStateDir = "FOLIO_STATE_DIR"
)

// Credentials exchange secrets, read from the environment only.
type Credentials struct {
	BinanceAPIKey         string
	BinanceAPISecret      string
	BybitAPIKey           string
	BybitAPISecret        string
	HyperliquidPrivateKey string
}

type Config struct {
	Platform        string
	QuoteCurrency   string
	DisplayCurrency string
	SeedBalance     domain.Money
	MinLot          domain.Money
	MaxLot          domain.Money
	Storage         string
	StateDir        string
	PriceTimeout    time.Duration
	PriceRetries    int
	PriceWorkers    int
	// RefreshInterval how often the running service revalues at fresh prices. Zero disables it.
	RefreshInterval time.Duration
	WebAddr         string
	TLSDomains      []string
	HyperliquidURL  string
	StaticPrices    map[string]domain.Money
	Credentials     Credentials
}

// ConfigTmp is the YAML shape of Config. Decimals are kept as strings.
type ConfigTmp struct {
	Platform        string            `yaml:"platform,omitempty"`
	QuoteCurrency   string            `yaml:"quote_currency,omitempty"`
	DisplayCurrency string            `yaml:"display_currency,omitempty"`
	SeedBalance     string            `yaml:"seed_balance,omitempty"`
	MinLot          string            `yaml:"min_lot,omitempty"`
	MaxLot          string            `yaml:"max_lot,omitempty"`
	Storage         string            `yaml:"storage,omitempty"`
	StateDir        string            `yaml:"state_dir,omitempty"`
	PriceTimeout    string            `yaml:"price_timeout,omitempty"`
	PriceRetries    *int              `yaml:"price_retries,omitempty"`
	PriceWorkers    int               `yaml:"price_workers,omitempty"`
	RefreshInterval string            `yaml:"refresh_interval,omitempty"`
	WebAddr         string            `yaml:"web_addr,omitempty"`
	TLSDomains      []string          `yaml:"tls_domains,omitempty"`
	HyperliquidURL  string            `yaml:"hyperliquid_url,omitempty"`
	StaticPrices    map[string]string `yaml:"static_prices,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Platform:        defaultPlatform,
		QuoteCurrency:   defaultQuoteCurrency,
		DisplayCurrency: defaultDisplayCurrency,
		SeedBalance:     domain.FromDecimalString(defaultSeedBalance),
		MinLot:          domain.FromDecimalString(defaultMinLot),
		MaxLot:          domain.FromDecimalString(defaultMaxLot),
		Storage:         defaultStorage,
		StateDir:        defaultStateDir,
		PriceTimeout:    defaultPriceTimeout,
		PriceRetries:    defaultPriceRetries,
		PriceWorkers:    defaultPriceWorkers,
		RefreshInterval: defaultRefresh,
		WebAddr:         defaultWebAddr,
		HyperliquidURL:  defaultHyperliquidURL,
		StaticPrices:    map[string]domain.Money{},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path loads only defaults and environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		cfg, err = Parse(data)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (Config, error) {
	var raw ConfigTmp
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, err
	}

	cfg := Default()

	if raw.Platform != "" {
		cfg.Platform = strings.ToLower(raw.Platform)
	}
	if raw.QuoteCurrency != "" {
		cfg.QuoteCurrency = domain.NormalizeAssetID(raw.QuoteCurrency)
	}
	if raw.DisplayCurrency != "" {
		cfg.DisplayCurrency = strings.ToUpper(raw.DisplayCurrency)
	}
	if raw.Storage != "" {
		cfg.Storage = strings.ToLower(raw.Storage)
	}
	if raw.StateDir != "" {
		cfg.StateDir = raw.StateDir
	}
	if raw.WebAddr != "" {
		cfg.WebAddr = raw.WebAddr
	}
	if raw.HyperliquidURL != "" {
		cfg.HyperliquidURL = raw.HyperliquidURL
	}
	cfg.TLSDomains = raw.TLSDomains

	var err error
	if cfg.SeedBalance, err = parseAmount("seed_balance", raw.SeedBalance, cfg.SeedBalance); err != nil {
		return Config{}, err
	}
	if cfg.MinLot, err = parseAmount("min_lot", raw.MinLot, cfg.MinLot); err != nil {
		return Config{}, err
	}
	if cfg.MaxLot, err = parseAmount("max_lot", raw.MaxLot, cfg.MaxLot); err != nil {
		return Config{}, err
	}

	if raw.PriceTimeout != "" {
		cfg.PriceTimeout, err = time.ParseDuration(raw.PriceTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'price_timeout' param in yaml config (correct format is 10s), error: %w", err)
		}
	}
	if raw.RefreshInterval != "" {
		cfg.RefreshInterval, err = time.ParseDuration(raw.RefreshInterval)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'refresh_interval' param in yaml config (correct format is 1m), error: %w", err)
		}
	}
	if raw.PriceRetries != nil {
		cfg.PriceRetries = *raw.PriceRetries
	}
	if raw.PriceWorkers != 0 {
		cfg.PriceWorkers = raw.PriceWorkers
	}

	for asset, price := range raw.StaticPrices {
		p, err := domain.ParseMoney(price)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect static price for %s in yaml config (must be a decimal), error: %w", asset, err)
		}
		cfg.StaticPrices[domain.NormalizeAssetID(asset)] = p
	}

	return cfg, nil
}

func parseAmount(name, raw string, fallback domain.Money) (domain.Money, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := domain.ParseMoney(raw)
	if err != nil {
		return domain.Zero, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", name, err)
	}
	return v, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.Credentials = Credentials{
		BinanceAPIKey:         getenv("BINANCE_API_KEY"),
		BinanceAPISecret:      getenv("BINANCE_API_SECRET"),
		BybitAPIKey:           getenv("BYBIT_API_KEY"),
		BybitAPISecret:        getenv("BYBIT_API_SECRET"),
		HyperliquidPrivateKey: getenv("HYPERLIQUID_PRIVATE_KEY"),
	}
	if dir := getenv(envStateDir); dir != "" {
		c.StateDir = dir
	}
}

// Validate checks value ranges and that the chosen platform has its credentials.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformSimulate, PlatformStatic:
	case PlatformBinance:
		if c.Credentials.BinanceAPIKey == "" || c.Credentials.BinanceAPISecret == "" {
			return errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
	case PlatformBybit:
		if c.Credentials.BybitAPIKey == "" || c.Credentials.BybitAPISecret == "" {
			return errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
	case PlatformHyperliquid:
		if c.Credentials.HyperliquidPrivateKey == "" {
			return errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
	default:
		return fmt.Errorf("unsupported platform: %s", c.Platform)
	}

	switch c.Storage {
	case StorageWAL, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unsupported storage: %s", c.Storage)
	}
	if c.Storage != StorageMemory && c.StateDir == "" {
		return errors.New("state_dir is required for persistent storage")
	}

	if c.SeedBalance.IsNegative() {
		return fmt.Errorf("seed_balance must not be negative, got %s", c.SeedBalance)
	}
	if !c.MinLot.IsPositive() {
		return fmt.Errorf("min_lot must be positive, got %s", c.MinLot)
	}
	if c.MaxLot.LessThan(c.MinLot) {
		return fmt.Errorf("max_lot %s must not be less than min_lot %s", c.MaxLot, c.MinLot)
	}
	if c.PriceTimeout <= 0 {
		return errors.New("price_timeout must be positive")
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must not be negative")
	}
	if c.PriceRetries < 0 {
		return errors.New("price_retries must not be negative")
	}
	if c.PriceWorkers < 1 {
		return errors.New("price_workers must be at least 1")
	}
	if c.QuoteCurrency == "" {
		return errors.New("quote_currency is required")
	}
	return nil
}

// Raw converts c back to its YAML shape. Credentials are never written.
func (c Config) Raw() ConfigTmp {
	retries := c.PriceRetries
	raw := ConfigTmp{
		Platform:        c.Platform,
		QuoteCurrency:   c.QuoteCurrency,
		DisplayCurrency: c.DisplayCurrency,
		SeedBalance:     c.SeedBalance.String(),
		MinLot:          c.MinLot.String(),
		MaxLot:          c.MaxLot.String(),
		Storage:         c.Storage,
		StateDir:        c.StateDir,
		PriceTimeout:    c.PriceTimeout.String(),
		PriceRetries:    &retries,
		PriceWorkers:    c.PriceWorkers,
		RefreshInterval: c.RefreshInterval.String(),
		WebAddr:         c.WebAddr,
		TLSDomains:      c.TLSDomains,
		HyperliquidURL:  c.HyperliquidURL,
	}
	if len(c.StaticPrices) > 0 {
		raw.StaticPrices = make(map[string]string, len(c.StaticPrices))
		for asset, price := range c.StaticPrices {
			raw.StaticPrices[asset] = price.String()
		}
	}
	return raw
}

// Save writes c as YAML to path.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c.Raw())
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

// StaticAssets returns the assets of the static price table in order.
func (c Config) StaticAssets() []string {
	out := make([]string, 0, len(c.StaticPrices))
	for asset := range c.StaticPrices {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}
