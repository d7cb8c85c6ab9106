package store

import (
	"database/sql"
	"testing"

	"wfm-pricer/internal/model"

	_ "modernc.org/sqlite"
)

// openTestStore opens an in-memory SQLite database and runs migrations.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return s
}

type fakeLookup struct {
	items map[string]model.TradableItem
}

func (f fakeLookup) FindItem(url string) (model.TradableItem, bool) {
	it, ok := f.items[url]
	return it, ok
}

func newFakeLookup() fakeLookup {
	return fakeLookup{items: map[string]model.TradableItem{
		"braton_prime_set": {WFMID: "abc123", URLName: "braton_prime_set", Name: "Braton Prime Set"},
	}}
}

func TestCreate_CacheMiss(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	_, err := s.Create(newFakeLookup(), "unknown_item", 1, 10, nil, model.SubType{})
	if err != ErrCacheMiss {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestCreate_InsertConvertsTotalToPerUnit(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	item, err := s.Create(newFakeLookup(), "braton_prime_set", 2, 100, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Owned != 2 {
		t.Errorf("Owned = %d, want 2", item.Owned)
	}
	if item.Bought != 50 {
		t.Errorf("Bought = %v, want 50 (100 total / 2 units)", item.Bought)
	}
	if item.Status != model.StatusPending {
		t.Errorf("Status = %v, want Pending", item.Status)
	}
}

func TestCreate_QuantityClampedToOne(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	item, err := s.Create(newFakeLookup(), "braton_prime_set", 0, 30, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Owned != 1 {
		t.Errorf("Owned = %d, want 1 (quantity<=0 clamps to 1)", item.Owned)
	}
	if item.Bought != 30 {
		t.Errorf("Bought = %v, want 30", item.Bought)
	}
}

// TestCreate_MergeWeightedAverage pins the merge invariant:
// after create(url,q,p) on an existing row with prior (owned=o, bought=b),
// new bought = (b*o + p) / (o + max(q,1)) exactly, with p treated as the
// TOTAL for the incoming batch on both insert and merge.
func TestCreate_MergeWeightedAverage(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	lookup := newFakeLookup()

	// First batch: 2 units for a total of 100 plat -> bought=50/unit.
	first, err := s.Create(lookup, "braton_prime_set", 2, 100, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create (first): %v", err)
	}

	// Second batch: 1 more unit for a total of 70 plat.
	second, err := s.Create(lookup, "braton_prime_set", 1, 70, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create (second): %v", err)
	}
	if second.Owned != 3 {
		t.Errorf("Owned = %d, want 3", second.Owned)
	}
	want := (first.Bought*float64(first.Owned) + 70) / 3
	if diff := second.Bought - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Bought = %v, want %v", second.Bought, want)
	}
}

func TestUpdateByID_SentinelClearsNullableFields(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	item, err := s.Create(newFakeLookup(), "braton_prime_set", 1, 40, ptrInt(10), model.SubType{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.MinimumPrice == nil || *item.MinimumPrice != 10 {
		t.Fatalf("MinimumPrice = %v, want 10", item.MinimumPrice)
	}

	if err := s.UpdateByID(item.ID, UpdatePatch{MinimumPrice: PatchIntClear()}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	got, err := s.GetByID(item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.MinimumPrice != nil {
		t.Errorf("MinimumPrice = %v, want nil after clear", got.MinimumPrice)
	}
}

func TestUpdateByID_AppendHistoryEvictsBeyondFive(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	item, err := s.Create(newFakeLookup(), "braton_prime_set", 1, 10, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 7; i++ {
		entry := model.PriceHistory{SellerName: "seller", Price: i}
		if err := s.UpdateByID(item.ID, UpdatePatch{AppendHistory: &entry}); err != nil {
			t.Fatalf("UpdateByID iter %d: %v", i, err)
		}
	}
	got, err := s.GetByID(item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.PriceHistory) != model.MaxPriceHistory {
		t.Fatalf("len(PriceHistory) = %d, want %d", len(got.PriceHistory), model.MaxPriceHistory)
	}
	if got.PriceHistory[len(got.PriceHistory)-1].Price != 6 {
		t.Errorf("last history price = %d, want 6 (most recent kept)", got.PriceHistory[len(got.PriceHistory)-1].Price)
	}
}

func TestSell_DeletesRowWhenOwnedReachesZero(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	item, err := s.Create(newFakeLookup(), "braton_prime_set", 2, 60, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	before, err := s.Sell(item.ID, 2)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if before.Owned != 2 {
		t.Errorf("pre-decrement snapshot Owned = %d, want 2", before.Owned)
	}
	if _, err := s.GetByID(item.ID); err != ErrNotFound {
		t.Errorf("GetByID after full sell = %v, want ErrNotFound", err)
	}
}

func TestSell_PartialDecrementsOwned(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()

	item, err := s.Create(newFakeLookup(), "braton_prime_set", 3, 90, nil, model.SubType{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Sell(item.ID, 1); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	got, err := s.GetByID(item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Owned != 2 {
		t.Errorf("Owned = %d, want 2", got.Owned)
	}
	if got.Bought != item.Bought {
		t.Errorf("Bought changed on sell: got %v, want unchanged %v", got.Bought, item.Bought)
	}
}

func TestVisibleURLs_ExcludesHiddenAndZeroOwned(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	lookup := fakeLookup{items: map[string]model.TradableItem{
		"a": {WFMID: "1", URLName: "a", Name: "A"},
		"b": {WFMID: "2", URLName: "b", Name: "B"},
	}}

	visible, err := s.Create(lookup, "a", 1, 10, nil, model.SubType{})
	if err != nil {
		t.Fatal(err)
	}
	hidden, err := s.Create(lookup, "b", 1, 10, nil, model.SubType{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateByID(hidden.ID, UpdatePatch{Hidden: PatchBool(true)}); err != nil {
		t.Fatal(err)
	}

	urls, err := s.VisibleURLs()
	if err != nil {
		t.Fatalf("VisibleURLs: %v", err)
	}
	if len(urls) != 1 || urls[0] != "a" {
		t.Errorf("VisibleURLs = %v, want [a]; visible id=%d", urls, visible.ID)
	}
}

func ptrInt(v int) *int { return &v }
