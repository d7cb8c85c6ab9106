package store

import (
	"fmt"
	"strconv"
	"strings"

	"wfm-pricer/internal/config"
)

// LoadSettings reads settings from SQLite. If the table is empty, returns
// defaults — the same "empty means defaults" contract as the teacher's
// config loader.
func (s *Store) LoadSettings() *config.Settings {
	cfg := config.Default()

	rows, err := s.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["api_base_url"]; ok {
		cfg.APIBaseURL = v
	}
	if v, ok := m["api_token"]; ok {
		cfg.APIToken = v
	}
	if v, ok := m["username"]; ok {
		cfg.Username = v
	}
	if v, ok := m["order_mode"]; ok {
		cfg.OrderMode = config.OrderMode(v)
	}
	if v, ok := m["blacklist"]; ok {
		cfg.Blacklist = splitCSV(v)
	}
	if v, ok := m["whitelist"]; ok {
		cfg.Whitelist = splitCSV(v)
	}
	if v, ok := m["strict_whitelist"]; ok {
		cfg.StrictWhitelist, _ = strconv.ParseBool(v)
	}
	if v, ok := m["volume_threshold"]; ok {
		cfg.VolumeThreshold, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["range_threshold"]; ok {
		cfg.RangeThreshold, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["avg_price_cap"]; ok {
		cfg.AvgPriceCap, _ = strconv.Atoi(v)
	}
	if v, ok := m["max_total_price_cap"]; ok {
		cfg.MaxTotalPriceCap, _ = strconv.Atoi(v)
	}
	if v, ok := m["price_shift_threshold"]; ok {
		cfg.PriceShiftThreshold, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["min_sma"]; ok {
		cfg.MinSMA, _ = strconv.Atoi(v)
	}
	if v, ok := m["min_profit"]; ok {
		cfg.MinProfit, _ = strconv.Atoi(v)
	}
	if v, ok := m["stock_mode"]; ok {
		cfg.StockMode = v
	}
	if v, ok := m["cycle_interval_seconds"]; ok {
		cfg.CycleInterval, _ = strconv.Atoi(v)
	}

	return cfg
}

// SaveSettings upserts cfg's credential, pricing and scheduling fields into
// SQLite; DataDir, RequestsPerSecond, Burst and MetricsAddr are not stored.
func (s *Store) SaveSettings(cfg *config.Settings) error {
	pairs := map[string]string{
		"api_base_url":           cfg.APIBaseURL,
		"api_token":              cfg.APIToken,
		"username":               cfg.Username,
		"order_mode":             string(cfg.OrderMode),
		"blacklist":              strings.Join(cfg.Blacklist, ","),
		"whitelist":              strings.Join(cfg.Whitelist, ","),
		"strict_whitelist":       strconv.FormatBool(cfg.StrictWhitelist),
		"volume_threshold":       fmt.Sprintf("%g", cfg.VolumeThreshold),
		"range_threshold":        fmt.Sprintf("%g", cfg.RangeThreshold),
		"avg_price_cap":          strconv.Itoa(cfg.AvgPriceCap),
		"max_total_price_cap":    strconv.Itoa(cfg.MaxTotalPriceCap),
		"price_shift_threshold":  fmt.Sprintf("%g", cfg.PriceShiftThreshold),
		"min_sma":                strconv.Itoa(cfg.MinSMA),
		"min_profit":             strconv.Itoa(cfg.MinProfit),
		"stock_mode":             cfg.StockMode,
		"cycle_interval_seconds": strconv.Itoa(cfg.CycleInterval),
	}

	tx, err := s.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func splitCSV(v string) []string {
	if v == "" {
		return []string{}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
