package backup

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/pkg/logger"
)

var tracer = otel.Tracer("openforge/usecase/backup")

const pageSize = 500

// Snapshot is the document pinned by a ledger backup.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Count       int          `json:"count"`
	Entries     []*pin.Entry `json:"entries"`
}

type Result struct {
	CID   string
	Count int
}

// BackupUseCase pins a JSON copy of the whole pin ledger, so the set of
// CIDs the gateway is responsible for survives losing the database.
type BackupUseCase struct {
	ledger pin.Repository
	pinner service.Pinner
	logger logger.Logger
	now    func() time.Time
}

func NewBackupUseCase(ledger pin.Repository, pinner service.Pinner, log logger.Logger) *BackupUseCase {
	return &BackupUseCase{ledger: ledger, pinner: pinner, logger: log, now: time.Now}
}

func (uc *BackupUseCase) Execute(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "LedgerBackup")
	defer span.End()

	uc.logger.Info("Starting pin ledger backup...")

	entries := make([]*pin.Entry, 0)
	for offset := 0; ; offset += pageSize {
		page, err := uc.ledger.List(ctx, pin.Filter{Limit: pageSize, Offset: offset})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		entries = append(entries, page...)
		if len(page) < pageSize {
			break
		}
	}

	now := uc.now().UTC()
	name := fmt.Sprintf("ledger-backup-%s.json", now.Format("2006-01-02_15-04-05"))
	cid, err := uc.pinner.PinJSON(ctx, name, Snapshot{GeneratedAt: now, Count: len(entries), Entries: entries})
	if err != nil {
		span.RecordError(err)
		uc.logger.Error("Failed to pin ledger backup", err)
		return nil, err
	}

	uc.logger.Info("Pin ledger backup completed",
		zap.String("cid", cid),
		zap.Int("entries", len(entries)),
	)
	return &Result{CID: cid, Count: len(entries)}, nil
}
