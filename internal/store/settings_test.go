package store

import "testing"

func TestSettings_EmptyTableReturnsDefaults(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	cfg := s.LoadSettings()
	if cfg.MaxTotalPriceCap != 500 {
		t.Errorf("MaxTotalPriceCap = %d, want default 500", cfg.MaxTotalPriceCap)
	}
}

func TestSettings_SaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	cfg := s.LoadSettings()
	cfg.MinProfit = 42
	cfg.Whitelist = []string{"braton_prime_set", "lex_prime_set"}
	if err := s.SaveSettings(cfg); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got := s.LoadSettings()
	if got.MinProfit != 42 {
		t.Errorf("MinProfit = %d, want 42", got.MinProfit)
	}
	if len(got.Whitelist) != 2 || got.Whitelist[0] != "braton_prime_set" {
		t.Errorf("Whitelist = %v, want [braton_prime_set lex_prime_set]", got.Whitelist)
	}
}
