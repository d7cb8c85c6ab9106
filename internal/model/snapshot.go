package model

import "time"

// RivenAttribute is a single possible modifier on a riven-weapon variant.
// The riven pricing path itself is out of scope; the attribute catalog is
// still mirrored and persisted so the snapshot schema round-trips exactly.
type RivenAttribute struct {
	URLName  string `json:"url_name"`
	Positive bool   `json:"positive"`
	Negative bool   `json:"negative,omitempty"`
}

// CacheItemSection is the `item` branch of the on-disk snapshot.
type CacheItemSection struct {
	Items []TradableItem `json:"items"`
}

// CacheRivenSection is the `riven` branch of the on-disk snapshot.
type CacheRivenSection struct {
	Items      []TradableItem   `json:"items"`
	Attributes []RivenAttribute `json:"attributes"`
}

// CacheSnapshot is the on-disk JSON mirror of the in-memory catalog.
type CacheSnapshot struct {
	LastRefresh *time.Time        `json:"last_refresh,omitempty"`
	Item        CacheItemSection  `json:"item"`
	Riven       CacheRivenSection `json:"riven"`
}

// CacheIdentity is the sidecar content-hash string used to detect a changed
// remote catalog without downloading it.
type CacheIdentity string
