package service

import (
	"context"
	"time"

	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/internal/domain/wallet"
)

type Receipt struct {
	TxHash      string
	BlockNumber uint64
	// ProjectID is set by a confirmed createProject.
	ProjectID *uint64
}

// PendingTx is a submitted transaction. Confirm blocks until it is mined
// and fails with a ChainError carrying the decoded revert reason.
type PendingTx interface {
	Hash() string
	Confirm(ctx context.Context) (*Receipt, error)
}

type ProfileRegistry interface {
	HasProfile(ctx context.Context, address string) (bool, error)
	// ProfileCID returns "" when the address has no profile.
	ProfileCID(ctx context.Context, address string) (string, error)
	// LastUpdated returns the zero time when the address never updated.
	LastUpdated(ctx context.Context, address string) (time.Time, error)
	UpdateCooldown(ctx context.Context) (time.Duration, error)
	CreateProfile(ctx context.Context, sess wallet.Session, cid string) (PendingTx, error)
	UpdateProfile(ctx context.Context, sess wallet.Session, cid string) (PendingTx, error)
}

type ProjectRegistry interface {
	NextProjectID(ctx context.Context) (uint64, error)
	// Project returns apperror.ErrNotFound for an id that was never created.
	Project(ctx context.Context, id uint64) (*project.Record, error)
	CreateProject(ctx context.Context, sess wallet.Session, cid string) (PendingTx, error)
	UpdateProject(ctx context.Context, sess wallet.Session, id uint64, cid string) (PendingTx, error)
	SetProjectStatus(ctx context.Context, sess wallet.Session, id uint64, status project.Status) (PendingTx, error)
}
