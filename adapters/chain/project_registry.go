package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/metrics"
)

type projectRegistry struct {
	client   *Client
	contract *bind.BoundContract
}

func NewProjectRegistry(c *Client, address string) (service.ProjectRegistry, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid project registry address %q", address)
	}
	contract := bind.NewBoundContract(common.HexToAddress(address), projectABI, c.backend, c.backend, c.backend)
	return &projectRegistry{client: c, contract: contract}, nil
}

func (r *projectRegistry) NextProjectID(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := r.contract.Call(r.client.callOpts(ctx), &out, "nextProjectId"); err != nil {
		metrics.ChainCalls.WithLabelValues("nextProjectId", "error").Inc()
		return 0, chainError("nextProjectId", "", err)
	}
	metrics.ChainCalls.WithLabelValues("nextProjectId", "ok").Inc()
	n := *abiConvert[*big.Int](out[0])
	if n == nil || !n.IsUint64() {
		return 0, &apperror.ChainError{Op: "nextProjectId", Reason: "count overflows uint64"}
	}
	return n.Uint64(), nil
}

type projectTuple struct {
	Builder     common.Address
	MetadataCID string
	Status      uint8
}

// Project maps a reverted read and an unset builder to ErrNotFound.
func (r *projectRegistry) Project(ctx context.Context, id uint64) (*project.Record, error) {
	var out []interface{}
	err := r.contract.Call(r.client.callOpts(ctx), &out, "getProject", new(big.Int).SetUint64(id))
	if err != nil {
		metrics.ChainCalls.WithLabelValues("getProject", "error").Inc()
		if isRevert(err) {
			return nil, apperror.NewNotFound("project", fmt.Sprint(id))
		}
		return nil, chainError("getProject", "", err)
	}
	metrics.ChainCalls.WithLabelValues("getProject", "ok").Inc()

	t := projectTuple{
		Builder:     *abiConvert[common.Address](out[0]),
		MetadataCID: *abiConvert[string](out[1]),
		Status:      *abiConvert[uint8](out[2]),
	}
	if t.Builder == (common.Address{}) {
		return nil, apperror.NewNotFound("project", fmt.Sprint(id))
	}
	status := project.FromChain(t.Status)
	if !project.Status(t.Status).Valid() {
		r.client.logger.Warn("Unknown project status on chain", zap.Uint64("project_id", id), zap.Uint8("status", t.Status))
	}
	return &project.Record{
		ID:      id,
		Builder: wallet.Normalize(t.Builder.Hex()),
		CID:     t.MetadataCID,
		Status:  status,
	}, nil
}

func (r *projectRegistry) CreateProject(ctx context.Context, sess wallet.Session, cid string) (service.PendingTx, error) {
	return r.transact(ctx, sess, createdProjectID, "registerProject", cid)
}

func (r *projectRegistry) UpdateProject(ctx context.Context, sess wallet.Session, id uint64, cid string) (service.PendingTx, error) {
	return r.transact(ctx, sess, nil, "updateProjectMetadata", new(big.Int).SetUint64(id), cid)
}

func (r *projectRegistry) SetProjectStatus(ctx context.Context, sess wallet.Session, id uint64, status project.Status) (service.PendingTx, error) {
	if !status.Valid() {
		return nil, apperror.NewValidation("status", "unknown project status")
	}
	return r.transact(ctx, sess, nil, "updateProjectStatus", new(big.Int).SetUint64(id), uint8(status))
}

func (r *projectRegistry) transact(ctx context.Context, sess wallet.Session, logs func([]*types.Log) *uint64, method string, args ...interface{}) (service.PendingTx, error) {
	opts, err := r.client.transactor(ctx, sess)
	if err != nil {
		return nil, err
	}
	tx, err := r.contract.Transact(opts, method, args...)
	if err != nil {
		metrics.ChainCalls.WithLabelValues(method, "rejected").Inc()
		return nil, chainError(method, "", err)
	}
	metrics.ChainCalls.WithLabelValues(method, "submitted").Inc()
	return r.client.pending(method, tx, logs), nil
}

// abiConvert converts an unpacked ABI value to T, yielding a pointer to
// T's zero value if the node returned something else. abi.ConvertType
// panics on a mismatch, so that is recovered here.
func abiConvert[T any](v interface{}) (out *T) {
	out = new(T)
	defer func() {
		if recover() != nil {
			out = new(T)
		}
	}()
	if p, ok := abi.ConvertType(v, out).(*T); ok {
		return p
	}
	return out
}
