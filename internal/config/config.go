// Package config holds the tunables for the pricing loop and the client
// that talks to the remote marketplace. Persistence is handled by
// internal/store; this package only defines the in-memory shape and
// defaults, plus an optional on-disk YAML override for headless deploys.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// OrderMode selects which side(s) of the market the pricing loop manages.
type OrderMode string

const (
	ModeBuy  OrderMode = "buy"
	ModeSell OrderMode = "sell"
	ModeBoth OrderMode = "both"
)

// Settings holds every tunable the pricing loop and its collaborators read.
// Default() supplies the starting value of every field.
type Settings struct {
	// Marketplace credentials.
	APIBaseURL string `yaml:"api_base_url"`
	APIToken   string `yaml:"api_token"`
	Username   string `yaml:"username"`

	// Local application data root (cache/, stock.db live under here).
	DataDir string `yaml:"data_dir"`

	// Pricing loop selection/decision inputs.
	OrderMode           OrderMode `yaml:"order_mode"`
	Blacklist           []string  `yaml:"blacklist"`
	Whitelist           []string  `yaml:"whitelist"`
	StrictWhitelist     bool      `yaml:"strict_whitelist"`
	VolumeThreshold     float64   `yaml:"volume_threshold"`
	RangeThreshold      float64   `yaml:"range_threshold"`
	AvgPriceCap         int       `yaml:"avg_price_cap"`
	MaxTotalPriceCap    int       `yaml:"max_total_price_cap"`
	PriceShiftThreshold float64   `yaml:"price_shift_threshold"`
	MinSMA              int       `yaml:"min_sma"`
	MinProfit           int       `yaml:"min_profit"`
	StockMode           string    `yaml:"stock_mode"`

	// Scheduling.
	CycleInterval int `yaml:"cycle_interval_seconds"`

	// Marketplace client resilience.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns Settings with sensible defaults, mirroring the shape of
// the marketplace's own client defaults: a generous but bounded volume/
// range filter, a modest spend cap, and a conservative request rate.
func Default() *Settings {
	return &Settings{
		APIBaseURL:          "https://api.warframe.market/v1",
		DataDir:             "data",
		OrderMode:           ModeBoth,
		Blacklist:           []string{},
		Whitelist:           []string{},
		StrictWhitelist:     false,
		VolumeThreshold:     15,
		RangeThreshold:      4,
		AvgPriceCap:         700,
		MaxTotalPriceCap:    500,
		PriceShiftThreshold: -1,
		MinSMA:              20,
		MinProfit:           5,
		StockMode:           "default",
		CycleInterval:       60,
		RequestsPerSecond:   3,
		Burst:               5,
		MetricsAddr:         ":9091",
	}
}

// LoadYAMLOverride reads an optional YAML file and merges any set fields
// onto cfg. A missing file is not an error — it simply means "no override".
func LoadYAMLOverride(cfg *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
