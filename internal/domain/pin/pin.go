// Package pin tracks every CID this gateway pinned so that superseded and
// abandoned content can be unpinned later.
package pin

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

type Status string

const (
	// StatusPinned: uploaded, not yet referenced by a confirmed transaction.
	StatusPinned Status = "pinned"
	// StatusReferenced: the current document (or one of its images) on chain.
	StatusReferenced Status = "referenced"
	// StatusSuperseded: replaced on chain, waiting for unpin.
	StatusSuperseded Status = "superseded"
	StatusUnpinned   Status = "unpinned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPinned, StatusReferenced, StatusSuperseded, StatusUnpinned:
		return true
	}
	return false
}

type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

type Entry struct {
	ID        uuid.UUID `json:"id"`
	CID       string    `json:"cid"`
	Digest    string    `json:"digest"`
	Kind      Kind      `json:"kind"`
	Owner     string    `json:"owner"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewEntry(cid, digest string, kind Kind, owner string, now time.Time) *Entry {
	return &Entry{
		ID:        uuid.New(),
		CID:       cid,
		Digest:    digest,
		Kind:      kind,
		Owner:     owner,
		Status:    StatusPinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Live reports whether the content is still pinned remotely.
func (e *Entry) Live() bool {
	return e.Status == StatusPinned || e.Status == StatusReferenced
}

// Digest is the BLAKE3-256 hex digest used to dedupe re-uploads.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type Filter struct {
	Owner  string
	Status Status
	Limit  int
	Offset int
}

type Repository interface {
	// FindLiveByDigest returns the live entry with this digest, or
	// apperror.ErrNotFound.
	FindLiveByDigest(ctx context.Context, digest string) (*Entry, error)
	FindByCID(ctx context.Context, cid string) (*Entry, error)
	// Save inserts an entry, or refreshes an existing row with the same CID.
	Save(ctx context.Context, entry *Entry) error
	MarkStatus(ctx context.Context, cids []string, status Status) error
	ListStale(ctx context.Context, status Status, olderThan time.Time, limit int) ([]*Entry, error)
	List(ctx context.Context, filter Filter) ([]*Entry, error)
}
