// Package servicetest provides in-memory implementations of the service
// ports for tests.
package servicetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
)

type profileRow struct {
	cid         string
	lastUpdated time.Time
}

// Registry implements both registries. Writes take effect on Confirm, the
// way a mined transaction would.
type Registry struct {
	mu       sync.Mutex
	profiles map[string]profileRow
	projects []project.Record
	txSeq    int

	Cooldown time.Duration
	Now      func() time.Time
	// ConfirmErr, when set, makes every Confirm fail with it.
	ConfirmErr error
	// MissingProfileReverts makes ProfileCID fail for unknown wallets the
	// way the deployed getProfile does, instead of returning "".
	MissingProfileReverts bool

	ProfileReads atomic.Int64
	ProjectReads atomic.Int64
	Submitted    atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]profileRow),
		Cooldown: 14 * 24 * time.Hour,
		Now:      time.Now,
	}
}

// SeedProfile stores a profile directly.
func (r *Registry) SeedProfile(address, cid string, lastUpdated time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[wallet.Normalize(address)] = profileRow{cid: cid, lastUpdated: lastUpdated}
}

// SeedProject appends a project and returns its id.
func (r *Registry) SeedProject(builder, cid string, status project.Status) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uint64(len(r.projects))
	r.projects = append(r.projects, project.Record{ID: id, Builder: wallet.Normalize(builder), CID: cid, Status: status})
	return id
}

func (r *Registry) HasProfile(_ context.Context, address string) (bool, error) {
	r.ProfileReads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.profiles[wallet.Normalize(address)]
	return ok, nil
}

func (r *Registry) ProfileCID(_ context.Context, address string) (string, error) {
	r.ProfileReads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.profiles[wallet.Normalize(address)]
	if !ok && r.MissingProfileReverts {
		return "", &apperror.ChainError{Op: "getProfile", Err: apperror.NewNotFound("profile", address)}
	}
	return row.cid, nil
}

func (r *Registry) LastUpdated(_ context.Context, address string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[wallet.Normalize(address)].lastUpdated, nil
}

func (r *Registry) UpdateCooldown(context.Context) (time.Duration, error) {
	return r.Cooldown, nil
}

func (r *Registry) CreateProfile(_ context.Context, sess wallet.Session, cid string) (service.PendingTx, error) {
	addr, err := sess.Address()
	if err != nil {
		return nil, err
	}
	addr = wallet.Normalize(addr)
	return r.submit("createProfile", func() (*service.Receipt, error) {
		if _, ok := r.profiles[addr]; ok {
			return nil, &apperror.ChainError{Op: "createProfile", Err: &apperror.AlreadyExistsError{Resource: "profile", Key: addr}}
		}
		r.profiles[addr] = profileRow{cid: cid, lastUpdated: r.Now()}
		return &service.Receipt{}, nil
	}), nil
}

func (r *Registry) UpdateProfile(_ context.Context, sess wallet.Session, cid string) (service.PendingTx, error) {
	addr, err := sess.Address()
	if err != nil {
		return nil, err
	}
	addr = wallet.Normalize(addr)
	return r.submit("updateProfile", func() (*service.Receipt, error) {
		row, ok := r.profiles[addr]
		if !ok {
			return nil, &apperror.ChainError{Op: "updateProfile", Err: apperror.NewNotFound("profile", addr)}
		}
		if remaining := row.lastUpdated.Add(r.Cooldown).Sub(r.Now()); !row.lastUpdated.IsZero() && remaining > 0 {
			return nil, &apperror.ChainError{Op: "updateProfile", Err: &apperror.CooldownActiveError{Remaining: remaining}}
		}
		r.profiles[addr] = profileRow{cid: cid, lastUpdated: r.Now()}
		return &service.Receipt{}, nil
	}), nil
}

func (r *Registry) NextProjectID(context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.projects)), nil
}

func (r *Registry) Project(_ context.Context, id uint64) (*project.Record, error) {
	r.ProjectReads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= uint64(len(r.projects)) {
		return nil, apperror.NewNotFound("project", fmt.Sprint(id))
	}
	rec := r.projects[id]
	return &rec, nil
}

func (r *Registry) CreateProject(_ context.Context, sess wallet.Session, cid string) (service.PendingTx, error) {
	addr, err := sess.Address()
	if err != nil {
		return nil, err
	}
	return r.submit("registerProject", func() (*service.Receipt, error) {
		id := uint64(len(r.projects))
		r.projects = append(r.projects, project.Record{ID: id, Builder: wallet.Normalize(addr), CID: cid, Status: project.StatusDraft})
		return &service.Receipt{ProjectID: &id}, nil
	}), nil
}

func (r *Registry) UpdateProject(_ context.Context, sess wallet.Session, id uint64, cid string) (service.PendingTx, error) {
	addr, err := sess.Address()
	if err != nil {
		return nil, err
	}
	return r.submit("updateProjectMetadata", func() (*service.Receipt, error) {
		rec, err := r.builderRecord(id, addr)
		if err != nil {
			return nil, err
		}
		rec.CID = cid
		return &service.Receipt{}, nil
	}), nil
}

func (r *Registry) SetProjectStatus(_ context.Context, sess wallet.Session, id uint64, status project.Status) (service.PendingTx, error) {
	addr, err := sess.Address()
	if err != nil {
		return nil, err
	}
	return r.submit("updateProjectStatus", func() (*service.Receipt, error) {
		rec, err := r.builderRecord(id, addr)
		if err != nil {
			return nil, err
		}
		if err := project.CheckTransition(rec.Status, status); err != nil {
			return nil, &apperror.ChainError{Op: "updateProjectStatus", Err: err}
		}
		rec.Status = status
		return &service.Receipt{}, nil
	}), nil
}

// builderRecord must be called with r.mu held.
func (r *Registry) builderRecord(id uint64, addr string) (*project.Record, error) {
	if id >= uint64(len(r.projects)) {
		return nil, &apperror.ChainError{Op: "project", Err: apperror.NewNotFound("project", fmt.Sprint(id))}
	}
	rec := &r.projects[id]
	if !strings.EqualFold(rec.Builder, addr) {
		return nil, &apperror.ChainError{Op: "project", Err: apperror.NewPermissionDenied("not the builder")}
	}
	return rec, nil
}

func (r *Registry) submit(op string, apply func() (*service.Receipt, error)) service.PendingTx {
	r.Submitted.Add(1)
	r.mu.Lock()
	r.txSeq++
	hash := fmt.Sprintf("0x%064x", r.txSeq)
	r.mu.Unlock()
	return &pendingTx{registry: r, op: op, hash: hash, apply: apply}
}

type pendingTx struct {
	registry *Registry
	op       string
	hash     string
	apply    func() (*service.Receipt, error)
}

func (t *pendingTx) Hash() string { return t.hash }

func (t *pendingTx) Confirm(ctx context.Context) (*service.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &apperror.ChainError{Op: t.op, TxHash: t.hash, Err: err}
	}
	if t.registry.ConfirmErr != nil {
		return nil, &apperror.ChainError{Op: t.op, TxHash: t.hash, Err: t.registry.ConfirmErr}
	}
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	rcpt, err := t.apply()
	if err != nil {
		return nil, err
	}
	rcpt.TxHash = t.hash
	rcpt.BlockNumber = uint64(t.registry.txSeq)
	return rcpt, nil
}
