// Package cache is the in-memory, queryable view of the item catalog and
// its price statistics, backed by an on-disk mirror that refreshes when
// the remote content identity changes or the last refresh is stale.
package cache

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/metrics"
	"wfm-pricer/internal/model"
)

const snapshotMaxAge = 24 * time.Hour

// RemoteSource is the subset of the marketplace client the cache needs.
// Accepting an interface here, rather than a concrete *wfm.Client, keeps
// this package testable without a network round trip and mirrors the
// teacher's own pattern of depending on client methods rather than
// client structs across package boundaries.
type RemoteSource interface {
	CatalogIdentity(ctx context.Context) (model.CacheIdentity, error)
	DownloadCatalog(ctx context.Context) ([]byte, error)
	PriceStats(ctx context.Context, urlName string) ([]model.ItemPriceInfo, error)
}

type itemModuleData struct {
	list  []model.TradableItem
	byURL map[string]model.TradableItem
}

// Client is the content-addressed catalog mirror. It is cheap to copy by
// pointer and safe for concurrent use; every sub-module is materialized
// on first access rather than eagerly at construction.
type Client struct {
	remote   RemoteSource
	cacheDir string

	itemModule lazyModule[itemModuleData]
	prices     *keyedCache[[]model.ItemPriceInfo]

	snapshot lazyModule[model.CacheSnapshot]
}

// New creates a cache rooted at cacheDir. Nothing is fetched or parsed
// until the first Load/FindItem/FindPriceInfo call.
func New(remote RemoteSource, cacheDir string) *Client {
	return &Client{
		remote:   remote,
		cacheDir: cacheDir,
		prices:   newKeyedCache[[]model.ItemPriceInfo](),
	}
}

// GetPath returns an absolute path under the cache root, creating it (as
// a directory) if it does not already exist.
func (c *Client) GetPath(relative string) string {
	p := filepath.Join(c.cacheDir, relative)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		if err := os.MkdirAll(p, 0o755); err != nil {
			logger.Warn("Cache", fmt.Sprintf("create %s: %v", p, err))
		}
	}
	return p
}

func (c *Client) identityPath() string {
	return filepath.Join(c.cacheDir, "cache_id.txt")
}

func (c *Client) snapshotPath() string {
	return filepath.Join(c.cacheDir, "cache.json")
}

func (c *Client) currentIdentity() model.CacheIdentity {
	raw, err := os.ReadFile(c.identityPath())
	if err != nil {
		return "N/A"
	}
	return model.CacheIdentity(strings.TrimSpace(string(raw)))
}

func (c *Client) writeIdentity(id model.CacheIdentity) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.identityPath(), []byte(id), 0o644)
}

// Load is the idempotent bootstrap: check identity, refresh the on-disk
// mirror if the remote catalog changed, then either reuse a fresh
// snapshot or rebuild one.
func (c *Client) Load(ctx context.Context) (model.CacheSnapshot, error) {
	current := c.currentIdentity()
	logger.Info("Cache", fmt.Sprintf("current cache id: %s", current))

	remoteID, err := c.remote.CatalogIdentity(ctx)
	if err != nil {
		logger.Error("Cache", fmt.Sprintf("identity check failed, using local cache: %v", err))
		remoteID = current
	} else {
		logger.Info("Cache", fmt.Sprintf("remote cache id: %s", remoteID))
	}

	if current != remoteID {
		logger.Info("Cache", "cache id mismatch, downloading new catalog")
		data, err := c.remote.DownloadCatalog(ctx)
		if err != nil {
			// A transport failure here is not fatal: whatever is already on
			// disk (if anything) is still usable, same as an identity-check
			// failure above. Only a successfully downloaded archive that
			// fails to extract, or an identity write failure, aborts Load.
			logger.Error("Cache", fmt.Sprintf("download failed, using local cache: %v", err))
			metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
		} else {
			if err := c.extractCatalog(data); err != nil {
				metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
				return model.CacheSnapshot{}, fmt.Errorf("extract catalog: %w", err)
			}
			if err := c.writeIdentity(remoteID); err != nil {
				metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
				return model.CacheSnapshot{}, fmt.Errorf("persist cache identity: %w", err)
			}
			c.itemModule.invalidate()
			c.prices.invalidate()
			metrics.CacheRefreshesTotal.WithLabelValues("downloaded").Inc()
		}
	}

	if _, err := c.items(); err != nil {
		return model.CacheSnapshot{}, fmt.Errorf("load item module: %w", err)
	}

	if raw, err := os.ReadFile(c.snapshotPath()); err == nil {
		snap, valid, err := validateJSON(raw)
		if err == nil && valid && snap.LastRefresh != nil && time.Since(*snap.LastRefresh) < snapshotMaxAge {
			c.snapshot.replace(snap)
			metrics.CacheRefreshesTotal.WithLabelValues("reused").Inc()
			return snap, nil
		}
	}

	snap, err := c.Refresh(ctx)
	if err != nil {
		metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
		return model.CacheSnapshot{}, err
	}
	if err := c.saveSnapshot(snap); err != nil {
		metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
		return model.CacheSnapshot{}, fmt.Errorf("persist snapshot: %w", err)
	}
	metrics.CacheRefreshesTotal.WithLabelValues("rebuilt").Inc()
	return snap, nil
}

// Refresh re-derives the in-memory snapshot from the sub-modules,
// stamps last_refresh, and returns a value copy.
func (c *Client) Refresh(ctx context.Context) (model.CacheSnapshot, error) {
	items, err := c.items()
	if err != nil {
		return model.CacheSnapshot{}, err
	}
	now := time.Now().UTC()
	snap := model.CacheSnapshot{
		LastRefresh: &now,
		Item:        model.CacheItemSection{Items: items},
	}
	c.snapshot.replace(snap)
	return snap, nil
}

// Invalidate drops every lazily-materialized sub-module and the cached
// snapshot, forcing the next Load/FindItem/FindPriceInfo to rebuild from
// disk or the remote client. The CLI's -force-refresh debug flag calls
// this before Load.
func (c *Client) Invalidate() {
	c.itemModule.invalidate()
	c.prices.invalidate()
	c.snapshot.invalidate()
}

func (c *Client) items() ([]model.TradableItem, error) {
	data, err := c.itemModule.get(c.loadItemsFromDisk)
	if err != nil {
		return nil, err
	}
	return data.list, nil
}

func (c *Client) loadItemsFromDisk() (itemModuleData, error) {
	raw, err := os.ReadFile(filepath.Join(c.cacheDir, "items.json"))
	if err != nil {
		return itemModuleData{}, fmt.Errorf("read items.json: %w", err)
	}
	var items []model.TradableItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return itemModuleData{}, fmt.Errorf("parse items.json: %w", err)
	}
	byURL := make(map[string]model.TradableItem, len(items))
	for _, it := range items {
		byURL[it.URLName] = it
	}
	return itemModuleData{list: items, byURL: byURL}, nil
}

// Items returns every tradable item currently in the catalog mirror.
func (c *Client) Items() ([]model.TradableItem, error) {
	return c.items()
}

// FindItem satisfies store.CatalogLookup: a cache miss on the catalog
// itself (items.json never loaded, or item genuinely absent) reports ok=false
// rather than an error, matching the store layer's CacheMiss semantics.
func (c *Client) FindItem(urlName string) (model.TradableItem, bool) {
	data, err := c.itemModule.get(c.loadItemsFromDisk)
	if err != nil {
		return model.TradableItem{}, false
	}
	it, ok := data.byURL[urlName]
	if !ok {
		metrics.CacheMissesTotal.Inc()
	}
	return it, ok
}

// FindPriceInfo returns the remote price-stats rows for urlName, fetching
// and caching them lazily on first access per item.
func (c *Client) FindPriceInfo(ctx context.Context, urlName string) ([]model.ItemPriceInfo, error) {
	return c.prices.get(urlName, func() ([]model.ItemPriceInfo, error) {
		return c.remote.PriceStats(ctx, urlName)
	})
}

func (c *Client) saveSnapshot(snap model.CacheSnapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.snapshotPath(), raw, 0o644)
}

// validateJSON parses raw into a CacheSnapshot, silently defaulting any
// missing top-level last_refresh, item.items, riven.items or
// riven.attributes fields. valid is false whenever a default had to be
// applied, signaling the caller to refresh rather than trust the file.
func validateJSON(raw []byte) (model.CacheSnapshot, bool, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return model.CacheSnapshot{}, false, err
	}
	valid := true

	if _, ok := top["last_refresh"]; !ok {
		valid = false
	}

	item := map[string]json.RawMessage{}
	if raw, ok := top["item"]; ok {
		json.Unmarshal(raw, &item)
	}
	if _, ok := item["items"]; !ok {
		item["items"] = json.RawMessage("[]")
		valid = false
		if b, err := json.Marshal(item); err == nil {
			top["item"] = b
		}
	}

	riven := map[string]json.RawMessage{}
	if raw, ok := top["riven"]; ok {
		json.Unmarshal(raw, &riven)
	}
	rivenChanged := false
	if _, ok := riven["items"]; !ok {
		riven["items"] = json.RawMessage("[]")
		valid = false
		rivenChanged = true
	}
	if _, ok := riven["attributes"]; !ok {
		riven["attributes"] = json.RawMessage("[]")
		valid = false
		rivenChanged = true
	}
	if rivenChanged {
		if b, err := json.Marshal(riven); err == nil {
			top["riven"] = b
		}
	}

	fixed, err := json.Marshal(top)
	if err != nil {
		return model.CacheSnapshot{}, false, err
	}
	var snap model.CacheSnapshot
	if err := json.Unmarshal(fixed, &snap); err != nil {
		return model.CacheSnapshot{}, false, err
	}
	return snap, valid, nil
}

// extractCatalog unpacks an already-downloaded catalog archive under the
// cache directory, guarding against zip-slip path traversal the same way
// the teacher's SDE loader does. Download and extraction are kept as
// separate failure domains: a transport failure fetching the archive is
// recoverable (the caller falls back to the local cache), while a failure
// here means the downloaded bytes themselves are unusable.
func (c *Client) extractCatalog(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open catalog archive: %w", err)
	}

	dstAbs, err := filepath.Abs(c.cacheDir)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		fpath := filepath.Join(dstAbs, f.Name)
		if rel, err := filepath.Rel(dstAbs, fpath); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("illegal catalog entry path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return err
		}
		if err := extractEntry(f, fpath); err != nil {
			return err
		}
	}

	logger.Success("Cache", "catalog downloaded and extracted")
	return nil
}

func extractEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
