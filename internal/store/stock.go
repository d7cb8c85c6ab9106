package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wfm-pricer/internal/model"
)

// ErrCacheMiss is returned when an incoming url has no matching catalog
// entry — the stock store refuses to track items the cache doesn't know.
var ErrCacheMiss = errors.New("store: item not found in catalog cache")

// ErrNotFound indicates the mirror and the database disagree about a row's
// existence: an update/sell was requested for an id that isn't present.
// This is an InvariantViolation, not a soft miss.
var ErrNotFound = errors.New("store: stock row not found")

// CatalogLookup is the subset of the cache's behavior the stock store needs
// to validate incoming urls without importing internal/cache directly.
type CatalogLookup interface {
	FindItem(urlName string) (model.TradableItem, bool)
}

type subTypeJSON struct {
	Rank       *int `json:"rank,omitempty"`
	Variant    *int `json:"variant,omitempty"`
	CyanStars  *int `json:"cyan_stars,omitempty"`
	AmberStars *int `json:"amber_stars,omitempty"`
}

func encodeSubType(s model.SubType) (sql.NullString, error) {
	if s.IsZero() {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(subTypeJSON(s))
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeSubType(raw sql.NullString) (model.SubType, error) {
	if !raw.Valid || raw.String == "" {
		return model.SubType{}, nil
	}
	var j subTypeJSON
	if err := json.Unmarshal([]byte(raw.String), &j); err != nil {
		return model.SubType{}, err
	}
	return model.SubType(j), nil
}

func encodeHistory(h []model.PriceHistory) (string, error) {
	if h == nil {
		h = []model.PriceHistory{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeHistory(raw string) ([]model.PriceHistory, error) {
	var h []model.PriceHistory
	if raw == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, err
	}
	return h, nil
}

func scanStockItem(row interface {
	Scan(dest ...any) error
}) (model.StockItem, error) {
	var item model.StockItem
	var sub sql.NullString
	var minPrice, listPrice sql.NullInt64
	var historyRaw, created string
	var hidden int
	err := row.Scan(
		&item.ID, &item.WFMID, &item.WFMURL, &item.DisplayName, &sub,
		&item.Bought, &minPrice, &listPrice, &historyRaw, &item.Owned,
		&hidden, &item.Status, &created,
	)
	if err != nil {
		return model.StockItem{}, err
	}
	item.IsHidden = hidden != 0
	if minPrice.Valid {
		v := int(minPrice.Int64)
		item.MinimumPrice = &v
	}
	if listPrice.Valid {
		v := int(listPrice.Int64)
		item.ListPrice = &v
	}
	item.SubType, err = decodeSubType(sub)
	if err != nil {
		return model.StockItem{}, err
	}
	item.PriceHistory, err = decodeHistory(historyRaw)
	if err != nil {
		return model.StockItem{}, err
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return item, nil
}

const stockItemColumns = `id, wfm_id, url, name, sub_type, price, minimum_price, listed_price, price_history, owned, hidden, status, created`

// GetByURL returns the stock row for (url, sub), if any.
func (s *Store) GetByURL(url string, sub model.SubType) (model.StockItem, bool, error) {
	subRaw, err := encodeSubType(sub)
	if err != nil {
		return model.StockItem{}, false, err
	}
	row := s.sql.QueryRow(
		`SELECT `+stockItemColumns+` FROM stock_item WHERE url = ? AND sub_type IS ? LIMIT 1`,
		url, subRaw,
	)
	item, err := scanStockItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StockItem{}, false, nil
	}
	if err != nil {
		return model.StockItem{}, false, err
	}
	return item, true, nil
}

// GetByID returns the stock row with the given id.
func (s *Store) GetByID(id int64) (model.StockItem, error) {
	row := s.sql.QueryRow(`SELECT `+stockItemColumns+` FROM stock_item WHERE id = ?`, id)
	item, err := scanStockItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StockItem{}, ErrNotFound
	}
	return item, err
}

// Create upserts a stock row for url/sub_type.
//
// If a matching row exists, the incoming price is merged as a weighted
// average of cost: new_owned = old.owned + max(quantity,1); the incoming
// price is interpreted as the TOTAL paid for the whole incoming batch on
// both the insert and the merge path (see DESIGN.md for why the two paths
// read as divergent in the distilled spec but are not, once traced against
// the original implementation).
func (s *Store) Create(lookup CatalogLookup, url string, quantity int, price float64, minimumPrice *int, sub model.SubType) (model.StockItem, error) {
	item, ok := lookup.FindItem(url)
	if !ok {
		return model.StockItem{}, ErrCacheMiss
	}
	if quantity <= 0 {
		quantity = 1
	}

	existing, found, err := s.GetByURL(url, sub)
	if err != nil {
		return model.StockItem{}, err
	}

	if found {
		oldTotal := decimal.NewFromFloat(existing.Bought).Mul(decimal.NewFromInt(int64(existing.Owned)))
		incomingTotal := decimal.NewFromFloat(price)
		newOwned := existing.Owned + quantity
		weighted := oldTotal.Add(incomingTotal).Div(decimal.NewFromInt(int64(newOwned)))
		weightedF, _ := weighted.Float64()

		if err := s.UpdateByID(existing.ID, UpdatePatch{
			Owned: PatchInt(newOwned),
			Price: PatchFloat(weightedF),
		}); err != nil {
			return model.StockItem{}, err
		}
		existing.Owned = newOwned
		existing.Bought = weightedF
		return existing, nil
	}

	perUnit := decimal.NewFromFloat(price).Div(decimal.NewFromInt(int64(quantity)))
	perUnitF, _ := perUnit.Float64()

	subRaw, err := encodeSubType(sub)
	if err != nil {
		return model.StockItem{}, err
	}
	historyRaw, _ := encodeHistory(nil)
	createdAt := time.Now().UTC()
	var minPriceArg any
	if minimumPrice != nil {
		minPriceArg = *minimumPrice
	}

	res, err := s.sql.Exec(
		`INSERT INTO stock_item (wfm_id, url, name, sub_type, price, minimum_price, listed_price, price_history, owned, hidden, status, created)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, 0, ?, ?)`,
		item.WFMID, url, item.Name, subRaw, perUnitF, minPriceArg, historyRaw, quantity, model.StatusPending, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.StockItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.StockItem{}, err
	}
	return s.GetByID(id)
}

// fieldPatch distinguishes "leave untouched" from "clear" from "set value"
// for update_by_id.
type fieldPatch[T any] struct {
	op    patchOp
	value T
}

type patchOp int

const (
	patchKeep patchOp = iota
	patchSet
	patchClear
)

func PatchInt(v int) fieldPatch[int]         { return fieldPatch[int]{op: patchSet, value: v} }
func PatchFloat(v float64) fieldPatch[float64] { return fieldPatch[float64]{op: patchSet, value: v} }
func PatchIntClear() fieldPatch[int]         { return fieldPatch[int]{op: patchClear} }
func PatchString(v string) fieldPatch[string] { return fieldPatch[string]{op: patchSet, value: v} }
func PatchBool(v bool) fieldPatch[bool]      { return fieldPatch[bool]{op: patchSet, value: v} }

// UpdatePatch is a partial update for update_by_id. Zero-value fields mean
// "don't touch"; use the sentinel constructors (e.g. PatchIntClear) to
// clear a nullable column.
type UpdatePatch struct {
	Owned            fieldPatch[int]
	Price            fieldPatch[float64]
	MinimumPrice     fieldPatch[int]
	ListPrice        fieldPatch[int]
	Status           fieldPatch[string]
	Hidden           fieldPatch[bool]
	AppendHistory    *model.PriceHistory
}

// UpdateByID applies a partial update. minimum_price/list_price use the
// three-case sentinel (Keep/Set/Clear) rather than a magic -1 int; callers
// such as internal/pricer pass PatchIntClear() to clear a column.
func (s *Store) UpdateByID(id int64, patch UpdatePatch) error {
	item, err := s.GetByID(id)
	if err != nil {
		return err
	}

	sets := []string{}
	args := []any{}

	if patch.Owned.op == patchSet {
		sets = append(sets, "owned = ?")
		args = append(args, patch.Owned.value)
	}
	if patch.Price.op == patchSet {
		sets = append(sets, "price = ?")
		args = append(args, patch.Price.value)
	}
	switch patch.MinimumPrice.op {
	case patchSet:
		sets = append(sets, "minimum_price = ?")
		args = append(args, patch.MinimumPrice.value)
	case patchClear:
		sets = append(sets, "minimum_price = NULL")
	}
	switch patch.ListPrice.op {
	case patchSet:
		sets = append(sets, "listed_price = ?")
		args = append(args, patch.ListPrice.value)
	case patchClear:
		sets = append(sets, "listed_price = NULL")
	}
	if patch.Status.op == patchSet {
		sets = append(sets, "status = ?")
		args = append(args, patch.Status.value)
	}
	if patch.Hidden.op == patchSet {
		sets = append(sets, "hidden = ?")
		hiddenVal := 0
		if patch.Hidden.value {
			hiddenVal = 1
		}
		args = append(args, hiddenVal)
	}
	if patch.AppendHistory != nil {
		history := model.PushPriceHistory(item.PriceHistory, *patch.AppendHistory)
		raw, err := encodeHistory(history)
		if err != nil {
			return err
		}
		sets = append(sets, "price_history = ?")
		args = append(args, raw)
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE stock_item SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.sql.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Sell decrements owned by max(quantity,1); the row is deleted once owned
// drops to zero or below. Returns the pre-decrement snapshot.
func (s *Store) Sell(id int64, quantity int) (model.StockItem, error) {
	if quantity < 1 {
		quantity = 1
	}
	before, err := s.GetByID(id)
	if err != nil {
		return model.StockItem{}, err
	}
	newOwned := before.Owned - quantity
	if newOwned <= 0 {
		if _, err := s.sql.Exec(`DELETE FROM stock_item WHERE id = ?`, id); err != nil {
			return model.StockItem{}, err
		}
		return before, nil
	}
	if err := s.UpdateByID(id, UpdatePatch{Owned: PatchInt(newOwned)}); err != nil {
		return model.StockItem{}, err
	}
	return before, nil
}

// ResetListedPrices bulk-clears list_price and resets status to Pending
// across every stock row — used by delete_all_orders.
func (s *Store) ResetListedPrices() error {
	_, err := s.sql.Exec(`UPDATE stock_item SET listed_price = NULL, status = ?`, model.StatusPending)
	return err
}

// VisibleURLs returns the url of every row that is not hidden and has
// owned > 0.
func (s *Store) VisibleURLs() ([]string, error) {
	rows, err := s.sql.Query(`SELECT url FROM stock_item WHERE hidden = 0 AND owned > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// All returns every stock row, used by the interesting-items selection
// step to union in stock urls when order_mode covers the sell side.
func (s *Store) All() ([]model.StockItem, error) {
	rows, err := s.sql.Query(`SELECT ` + stockItemColumns + ` FROM stock_item`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.StockItem
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock_item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
