package wfm

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"wfm-pricer/internal/model"
)

type wireItem struct {
	ID       string   `json:"id"`
	URLName  string   `json:"url_name"`
	ItemName string   `json:"item_name"`
	MaxRank  *int     `json:"max_rank,omitempty"`
	Tags     []string `json:"tags"`
}

func (w wireItem) toModel() model.TradableItem {
	return model.TradableItem{
		WFMID:   w.ID,
		URLName: w.URLName,
		Name:    w.ItemName,
		MaxRank: w.MaxRank,
		Tags:    w.Tags,
	}
}

// CatalogIdentity fetches the full tradable-item catalog and returns a
// content hash of the raw response as the cache identity. The
// marketplace API has no dedicated identity endpoint; hashing the
// catalog response is the cheapest way to detect a changed remote
// catalog without a full parse every cycle, and satisfies
// internal/cache's content-addressed refresh check.
func (c *Client) CatalogIdentity(ctx context.Context) (model.CacheIdentity, error) {
	raw, err := c.getRaw(ctx, "/items")
	if err != nil {
		return "", fmt.Errorf("fetch catalog for identity: %w", err)
	}
	sum := sha256.Sum256(raw)
	return model.CacheIdentity(hex.EncodeToString(sum[:])), nil
}

// DownloadCatalog fetches the full tradable-item catalog and repackages
// it as a single-entry zip archive so internal/cache can extract it
// through the same zip-slip-guarded path it would use for a literal
// archive download.
func (c *Client) DownloadCatalog(ctx context.Context) ([]byte, error) {
	var resp struct {
		Payload struct {
			Items []wireItem `json:"items"`
		} `json:"payload"`
	}
	if err := c.getJSON(ctx, "/items", &resp); err != nil {
		return nil, fmt.Errorf("download catalog: %w", err)
	}

	items := make([]model.TradableItem, 0, len(resp.Payload.Items))
	for _, w := range resp.Payload.Items {
		items = append(items, w.toModel())
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog items: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("items.json")
	if err != nil {
		return nil, err
	}
	if _, err := entry.Write(itemsJSON); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type wireStat struct {
	Volume         float64  `json:"volume"`
	Range          float64  `json:"range"`
	AvgPrice       float64  `json:"avg_price"`
	MovingAvg      *float64 `json:"moving_avg,omitempty"`
	WeekPriceShift float64  `json:"week_price_shift"`
	ModRank        *int     `json:"mod_rank,omitempty"`
	OrderType      string   `json:"order_type"`
}

func (w wireStat) toModel(urlName string) model.ItemPriceInfo {
	ot := model.OrderTypeClosed
	switch w.OrderType {
	case "buy":
		ot = model.OrderTypeBuy
	case "sell":
		ot = model.OrderTypeSell
	}
	return model.ItemPriceInfo{
		URLName:        urlName,
		OrderType:      ot,
		Volume:         w.Volume,
		Range:          w.Range,
		AvgPrice:       w.AvgPrice,
		MovingAvg:      w.MovingAvg,
		WeekPriceShift: w.WeekPriceShift,
		ModRank:        w.ModRank,
	}
}

// PriceStats fetches the aggregated 90-day closed-order price statistics
// for one item.
func (c *Client) PriceStats(ctx context.Context, urlName string) ([]model.ItemPriceInfo, error) {
	var resp struct {
		Payload struct {
			StatisticsClosed struct {
				NinetyDays []wireStat `json:"90days"`
			} `json:"statistics_closed"`
		} `json:"payload"`
	}
	if err := c.getJSON(ctx, "/items/"+urlName+"/statistics", &resp); err != nil {
		return nil, fmt.Errorf("fetch price stats for %s: %w", urlName, err)
	}

	out := make([]model.ItemPriceInfo, 0, len(resp.Payload.StatisticsClosed.NinetyDays))
	for _, w := range resp.Payload.StatisticsClosed.NinetyDays {
		out = append(out, w.toModel(urlName))
	}
	return out, nil
}
