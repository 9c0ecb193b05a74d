package service

import (
	"context"
	"encoding/json"
	"time"
)

// CacheEntry is a resolved document, or a negative entry recording that the
// key had no registry record.
type CacheEntry struct {
	CID       string          `json:"cid,omitempty"`
	Document  json.RawMessage `json:"document,omitempty"`
	// Record holds registry fields stored next to the document (project
	// builder and status).
	Record    json.RawMessage `json:"record,omitempty"`
	Negative  bool            `json:"negative,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Cache is the read-through store in front of registry and gateway reads.
// Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, keys ...string) error
}
