package service

import (
	"context"
	"encoding/json"
)

// Pinner uploads content to a pinning provider and returns its CID.
type Pinner interface {
	PinFile(ctx context.Context, name, contentType string, data []byte) (string, error)
	PinJSON(ctx context.Context, name string, doc any) (string, error)
	Unpin(ctx context.Context, cid string) error
}

// DocumentFetcher retrieves raw JSON by CID from the IPFS network.
type DocumentFetcher interface {
	Fetch(ctx context.Context, cid string) (json.RawMessage, error)
}

// ImageURLBuilder turns CIDs into URLs clients can load.
type ImageURLBuilder interface {
	GatewayURL(cid string) string
	ThumbnailURL(cid string) (string, error)
}
