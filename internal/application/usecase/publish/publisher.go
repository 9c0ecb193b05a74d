package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

// Publisher does the upload and bookkeeping steps shared by the profile
// and project flows. The ledger and cleanup scheduler are optional.
type Publisher struct {
	pinner  service.Pinner
	ledger  pin.Repository
	cleanup service.CleanupScheduler
	logger  logger.Logger
	now     func() time.Time
}

func NewPublisher(pinner service.Pinner, ledger pin.Repository, cleanup service.CleanupScheduler, log logger.Logger) *Publisher {
	return &Publisher{pinner: pinner, ledger: ledger, cleanup: cleanup, logger: log, now: time.Now}
}

// PinImage uploads an already validated image. Identical bytes pinned
// earlier and still live are reused instead of uploaded again.
func (p *Publisher) PinImage(ctx context.Context, owner string, file media.ImageFile) (string, error) {
	return p.pinDeduped(ctx, owner, pin.KindImage, file.Data, func() (string, error) {
		return p.pinner.PinFile(ctx, file.Filename, media.NormalizeType(file.ContentType), file.Data)
	})
}

// PinDocument serializes doc once so the digest matches the uploaded bytes.
func (p *Publisher) PinDocument(ctx context.Context, owner, name string, doc any) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", apperror.NewInternal("failed to encode metadata document", err)
	}
	return p.pinDeduped(ctx, owner, pin.KindDocument, raw, func() (string, error) {
		return p.pinner.PinJSON(ctx, name, json.RawMessage(raw))
	})
}

func (p *Publisher) pinDeduped(ctx context.Context, owner string, kind pin.Kind, data []byte, upload func() (string, error)) (string, error) {
	digest := pin.Digest(data)

	if p.ledger != nil {
		entry, err := p.ledger.FindLiveByDigest(ctx, digest)
		switch {
		case err == nil:
			p.logger.Info("Reusing pinned content", zap.String("cid", entry.CID), zap.String("kind", string(kind)))
			// An unreferenced row keeps aging toward the sweep cutoff, so
			// restart its grace period before the new transaction commits.
			if entry.Status == pin.StatusPinned {
				if err := p.ledger.MarkStatus(ctx, []string{entry.CID}, pin.StatusPinned); err != nil {
					p.logger.Warn("Failed to refresh reused pin", zap.String("cid", entry.CID), zap.Error(err))
				}
			}
			return entry.CID, nil
		case !errors.Is(err, apperror.ErrNotFound):
			p.logger.Warn("Pin ledger lookup failed, uploading anyway", zap.Error(err))
		}
	}

	cid, err := upload()
	if err != nil {
		return "", err
	}

	if p.ledger != nil {
		if err := p.ledger.Save(ctx, pin.NewEntry(cid, digest, kind, owner, p.now().UTC())); err != nil {
			p.logger.Warn("Failed to record pin in ledger", zap.String("cid", cid), zap.Error(err))
		}
	}
	return cid, nil
}

// Commit runs after a transaction is confirmed: the new CIDs become
// referenced, and previous CIDs no longer referenced are handed to cleanup.
// Failures here are logged and never fail the publish.
func (p *Publisher) Commit(ctx context.Context, owner, reason string, current, previous []string) {
	keep := make(map[string]struct{}, len(current))
	for _, c := range current {
		keep[c] = struct{}{}
	}
	var superseded []string
	for _, c := range previous {
		if c == "" {
			continue
		}
		if _, ok := keep[c]; !ok {
			keep[c] = struct{}{}
			superseded = append(superseded, c)
		}
	}

	if p.ledger != nil {
		if err := p.ledger.MarkStatus(ctx, current, pin.StatusReferenced); err != nil {
			p.logger.Warn("Failed to mark pins referenced", zap.Strings("cids", current), zap.Error(err))
		}
		if len(superseded) > 0 {
			if err := p.ledger.MarkStatus(ctx, superseded, pin.StatusSuperseded); err != nil {
				p.logger.Warn("Failed to mark pins superseded", zap.Strings("cids", superseded), zap.Error(err))
			}
		}
	}

	if p.cleanup == nil || len(superseded) == 0 {
		return
	}
	// TODO: images shared between two projects are unpinned when either one
	// drops them; the ledger needs per-record reference counts to avoid that.
	now := p.now().UTC()
	events := make([]service.PinEvent, 0, len(superseded))
	for _, c := range superseded {
		events = append(events, service.PinEvent{
			EventType: service.EventCIDSuperseded,
			CID:       c,
			Owner:     owner,
			Reason:    reason,
			EmittedAt: now,
		})
	}
	if err := p.cleanup.Schedule(context.WithoutCancel(ctx), events...); err != nil {
		p.logger.Warn("Failed to schedule unpin of superseded content", zap.Strings("cids", superseded), zap.Error(err))
	}
}

// Confirm waits for tx to be mined, failing the tracker's confirming stage
// on a revert or timeout.
func Confirm(ctx context.Context, t *Tracker, tx service.PendingTx) (*service.Receipt, error) {
	t.Enter(StageConfirming)
	receipt, err := tx.Confirm(ctx)
	if err != nil {
		return nil, t.Fail(err)
	}
	if receipt == nil {
		return nil, t.Fail(fmt.Errorf("transaction %s confirmed without receipt", tx.Hash()))
	}
	return receipt, nil
}

// Result is what a confirmed publish reports back.
type Result struct {
	CID         string   `json:"cid"`
	TxHash      string   `json:"tx_hash"`
	BlockNumber uint64   `json:"block_number"`
	ProjectID   *uint64  `json:"project_id,omitempty"`
	ImageCIDs   []string `json:"image_cids,omitempty"`
	Stages      []Stage  `json:"stages"`
}
