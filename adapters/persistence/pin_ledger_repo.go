package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/pkg/apperror"
)

const pinColumns = "id, cid, digest, kind, owner, status, created_at, updated_at"

type postgresPinLedger struct {
	db *pgxpool.Pool
}

func NewPostgresPinLedger(db *pgxpool.Pool) pin.Repository {
	return &postgresPinLedger{db: db}
}

func scanEntry(row pgx.Row) (*pin.Entry, error) {
	e := &pin.Entry{}
	err := row.Scan(&e.ID, &e.CID, &e.Digest, &e.Kind, &e.Owner, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEntries(rows pgx.Rows) ([]*pin.Entry, error) {
	defer rows.Close()
	entries := make([]*pin.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pin ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pin ledger rows: %w", err)
	}
	return entries, nil
}

func (r *postgresPinLedger) FindLiveByDigest(ctx context.Context, digest string) (*pin.Entry, error) {
	query, args, err := psql.Select(pinColumns).
		From("pin_ledger").
		Where(sq.Eq{"digest": digest, "status": []pin.Status{pin.StatusPinned, pin.StatusReferenced}}).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build digest query: %w", err)
	}
	e, err := scanEntry(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("pin", digest)
		}
		return nil, fmt.Errorf("failed to find pin by digest: %w", err)
	}
	return e, nil
}

func (r *postgresPinLedger) FindByCID(ctx context.Context, cid string) (*pin.Entry, error) {
	query := `SELECT ` + pinColumns + ` FROM pin_ledger WHERE cid = $1`
	e, err := scanEntry(r.db.QueryRow(ctx, query, cid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("pin", cid)
		}
		return nil, fmt.Errorf("failed to find pin by cid: %w", err)
	}
	return e, nil
}

// Save upserts on cid. Re-pinning content that was unpinned or superseded
// revives it as pinned; a referenced row stays referenced.
func (r *postgresPinLedger) Save(ctx context.Context, e *pin.Entry) error {
	query := `
		INSERT INTO pin_ledger (id, cid, digest, kind, owner, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cid) DO UPDATE SET
			digest = EXCLUDED.digest,
			status = CASE WHEN pin_ledger.status = 'referenced' THEN pin_ledger.status ELSE EXCLUDED.status END,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, e.ID, e.CID, e.Digest, e.Kind, e.Owner, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pin ledger entry: %w", err)
	}
	return nil
}

func (r *postgresPinLedger) MarkStatus(ctx context.Context, cids []string, status pin.Status) error {
	if len(cids) == 0 {
		return nil
	}
	query, args, err := psql.Update("pin_ledger").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"cid": cids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status update: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark pins %s: %w", status, err)
	}
	return nil
}

func (r *postgresPinLedger) ListStale(ctx context.Context, status pin.Status, olderThan time.Time, limit int) ([]*pin.Entry, error) {
	query, args, err := psql.Select(pinColumns).
		From("pin_ledger").
		Where(sq.Eq{"status": status}).
		Where(sq.Lt{"updated_at": olderThan}).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stale query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pins: %w", err)
	}
	return scanEntries(rows)
}

func (r *postgresPinLedger) List(ctx context.Context, f pin.Filter) ([]*pin.Entry, error) {
	builder := psql.Select(pinColumns).
		From("pin_ledger").
		OrderBy("created_at DESC")
	if f.Owner != "" {
		builder = builder.Where(sq.Eq{"owner": f.Owner})
	}
	if f.Status != "" {
		builder = builder.Where(sq.Eq{"status": f.Status})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		builder = builder.Offset(uint64(f.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return scanEntries(rows)
}
