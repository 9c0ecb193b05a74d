package service

import (
	"context"
	"time"
)

const (
	EventCIDSuperseded = "cid.superseded"
	EventCIDOrphaned   = "cid.orphaned"
)

// PinEvent asks the cleanup worker to unpin a CID.
type PinEvent struct {
	EventType string    `json:"event_type"`
	CID       string    `json:"cid"`
	Owner     string    `json:"owner"`
	Reason    string    `json:"reason"`
	EmittedAt time.Time `json:"emitted_at"`
}

// CleanupScheduler hands unpin work off the request path.
type CleanupScheduler interface {
	Schedule(ctx context.Context, events ...PinEvent) error
	Close() error
}
