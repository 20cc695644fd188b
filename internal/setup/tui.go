// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

const wizardTitle = "FOLIO CONFIG WIZARD"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collected by the wizard, all as typed.
type answers struct {
	platform        string
	quoteCurrency   string
	storage         string
	stateDir        string
	seedBalance     string
	minLot          string
	maxLot          string
	staticPrices    string
	refreshInterval string
}

func defaultAnswers() answers {
	d := config.Default()
	return answers{
		platform:        d.Platform,
		quoteCurrency:   d.QuoteCurrency,
		storage:         d.Storage,
		stateDir:        d.StateDir,
		seedBalance:     d.SeedBalance.String(),
		minLot:          d.MinLot.String(),
		maxLot:          d.MaxLot.String(),
		refreshInterval: d.RefreshInterval.String(),
	}
}

// RunTUI walks through the settings and writes them to path.
func RunTUI(path string) (config.Config, error) {
	a := defaultAnswers()
	var confirm bool

	step := func(title string) {
		fmt.Print("\033[H\033[2J") // clear screen
		fmt.Println(headerStyle.Render(wizardTitle))
		fmt.Println(stepStyle.Render(title))
	}

	step("STEP 1: PRICES")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Where should folio get market prices?\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Price source").
				Options(
					huh.NewOption("Binance public data (no keys)", config.PlatformSimulate),
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
					huh.NewOption("Static price table", config.PlatformStatic),
				).
				Value(&a.platform),
			huh.NewInput().
				Title("Quote currency").
				Description("Exchange symbols are built as ASSET+QUOTE (e.g. BTCUSDT)").
				Value(&a.quoteCurrency),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}

	if a.platform == config.PlatformStatic {
		step("STEP 1b: STATIC PRICES")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Prices").
					Description("Comma separated ASSET=PRICE pairs (e.g. BTC=65000, ETH=3000)").
					Value(&a.staticPrices).
					Validate(func(s string) error {
						_, err := parseStaticPrices(s)
						return err
					}),
			),
		).Run()
		if err != nil {
			return config.Config{}, err
		}
	}

	step("STEP 2: STORAGE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Ledger storage").
				Options(
					huh.NewOption("Write-ahead log", config.StorageWAL),
					huh.NewOption("SQLite", config.StorageSQLite),
					huh.NewOption("Memory (nothing is kept)", config.StorageMemory),
				).
				Value(&a.storage),
			huh.NewInput().
				Title("State directory").
				Value(&a.stateDir),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}

	step("STEP 3: LEDGER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting cash balance").
				Value(&a.seedBalance).
				Validate(validateDecimal(true)),
			huh.NewInput().
				Title("Minimum trade quantity").
				Value(&a.minLot).
				Validate(validateDecimal(false)),
			huh.NewInput().
				Title("Maximum trade quantity").
				Value(&a.maxLot).
				Validate(validateDecimal(false)),
			huh.NewInput().
				Title("Revalue interval").
				Description("Duration string (e.g. 30s, 1m), 0 disables").
				Value(&a.refreshInterval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := a.config()
	if err != nil {
		return config.Config{}, err
	}

	step("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary(cfg)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}
	if !confirm {
		return config.Config{}, errors.New("setup cancelled by user")
	}

	if err := cfg.Save(path); err != nil {
		return config.Config{}, err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	if env := credentialEnv(cfg.Platform); env != "" {
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Export " + env + " before starting folio."))
	}
	return cfg, nil
}

// config converts the answers over the defaults. Credentials are not asked for.
func (a answers) config() (config.Config, error) {
	cfg := config.Default()
	cfg.Platform = a.platform
	cfg.QuoteCurrency = domain.NormalizeAssetID(a.quoteCurrency)
	cfg.Storage = a.storage
	cfg.StateDir = strings.TrimSpace(a.stateDir)

	var err error
	if cfg.SeedBalance, err = domain.ParseMoney(a.seedBalance); err != nil {
		return config.Config{}, errors.Wrap(err, "seed balance")
	}
	if cfg.MinLot, err = domain.ParseMoney(a.minLot); err != nil {
		return config.Config{}, errors.Wrap(err, "min lot")
	}
	if cfg.MaxLot, err = domain.ParseMoney(a.maxLot); err != nil {
		return config.Config{}, errors.Wrap(err, "max lot")
	}
	if cfg.RefreshInterval, err = time.ParseDuration(a.refreshInterval); err != nil {
		return config.Config{}, errors.Wrap(err, "refresh interval")
	}
	if a.platform == config.PlatformStatic {
		if cfg.StaticPrices, err = parseStaticPrices(a.staticPrices); err != nil {
			return config.Config{}, err
		}
	}

	// credentials come from the environment at startup
	check := cfg
	check.Credentials = config.Credentials{
		BinanceAPIKey:         "-",
		BinanceAPISecret:      "-",
		BybitAPIKey:           "-",
		BybitAPISecret:        "-",
		HyperliquidPrivateKey: "-",
	}
	if err := check.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func validateDecimal(allowZero bool) func(string) error {
	return func(s string) error {
		d, err := domain.ParseMoney(s)
		if err != nil {
			return fmt.Errorf("must be a valid number")
		}
		if d.IsNegative() || (!allowZero && d.IsZero()) {
			if allowZero {
				return fmt.Errorf("must not be negative")
			}
			return fmt.Errorf("must be positive")
		}
		return nil
	}
}

// parseStaticPrices reads "BTC=65000, ETH=3000".
func parseStaticPrices(s string) (map[string]domain.Money, error) {
	prices := make(map[string]domain.Money)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		asset, raw, ok := strings.Cut(part, "=")
		asset = domain.NormalizeAssetID(asset)
		if !ok || asset == "" {
			return nil, fmt.Errorf("invalid entry %q: expected ASSET=PRICE", part)
		}
		price, err := domain.ParseMoney(raw)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("invalid price for %s: %q", asset, strings.TrimSpace(raw))
		}
		prices[asset] = price
	}
	if len(prices) == 0 {
		return nil, errors.New("at least one ASSET=PRICE pair is required")
	}
	return prices, nil
}

func summary(cfg config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prices: %s (quote %s)\n", cfg.Platform, cfg.QuoteCurrency)
	fmt.Fprintf(&b, "Storage: %s at %s\n", cfg.Storage, cfg.StateDir)
	fmt.Fprintf(&b, "Starting cash: %s\n", cfg.SeedBalance)
	fmt.Fprintf(&b, "Trade size: %s to %s\n", cfg.MinLot, cfg.MaxLot)
	fmt.Fprintf(&b, "Revalue every: %s\n", cfg.RefreshInterval)

	assets := make([]string, 0, len(cfg.StaticPrices))
	for asset := range cfg.StaticPrices {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		fmt.Fprintf(&b, "  %s = %s\n", asset, cfg.StaticPrices[asset])
	}
	return b.String()
}

func credentialEnv(platform string) string {
	switch platform {
	case config.PlatformBinance:
		return "BINANCE_API_KEY and BINANCE_API_SECRET"
	case config.PlatformBybit:
		return "BYBIT_API_KEY and BYBIT_API_SECRET"
	case config.PlatformHyperliquid:
		return "HYPERLIQUID_PRIVATE_KEY"
	default:
		return ""
	}
}
