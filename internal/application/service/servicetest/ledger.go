package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/pkg/apperror"
)

// Ledger is an in-memory pin.Repository with the same upsert rules as the
// Postgres one.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*pin.Entry
	Now     func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*pin.Entry), Now: time.Now}
}

func (l *Ledger) FindLiveByDigest(_ context.Context, digest string) (*pin.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Digest == digest && e.Live() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("pin", digest)
}

func (l *Ledger) FindByCID(_ context.Context, cid string) (*pin.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[cid]
	if !ok {
		return nil, apperror.NewNotFound("pin", cid)
	}
	cp := *e
	return &cp, nil
}

func (l *Ledger) Save(_ context.Context, e *pin.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[e.CID]; ok {
		existing.Digest = e.Digest
		existing.UpdatedAt = e.UpdatedAt
		if existing.Status != pin.StatusReferenced {
			existing.Status = e.Status
		}
		return nil
	}
	cp := *e
	l.entries[e.CID] = &cp
	return nil
}

func (l *Ledger) MarkStatus(_ context.Context, cids []string, status pin.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range cids {
		if e, ok := l.entries[c]; ok {
			e.Status = status
			e.UpdatedAt = l.Now()
		}
	}
	return nil
}

func (l *Ledger) ListStale(_ context.Context, status pin.Status, olderThan time.Time, limit int) ([]*pin.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*pin.Entry
	for _, e := range l.entries {
		if e.Status == status && e.UpdatedAt.Before(olderThan) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) List(_ context.Context, f pin.Filter) ([]*pin.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*pin.Entry
	for _, e := range l.entries {
		if (f.Owner == "" || e.Owner == f.Owner) && (f.Status == "" || e.Status == f.Status) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Status returns the ledger status of cid, or "" if it is unknown.
func (l *Ledger) Status(cid string) pin.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[cid]; ok {
		return e.Status
	}
	return ""
}

// Scheduler records scheduled cleanup events.
type Scheduler struct {
	mu     sync.Mutex
	Events []service.PinEvent
}

func (s *Scheduler) Schedule(_ context.Context, events ...service.PinEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, events...)
	return nil
}

func (s *Scheduler) Close() error { return nil }

func (s *Scheduler) CIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Events))
	for _, ev := range s.Events {
		out = append(out, ev.CID)
	}
	return out
}
