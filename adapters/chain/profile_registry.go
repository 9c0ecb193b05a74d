package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/metrics"
)

type profileRegistry struct {
	client   *Client
	contract *bind.BoundContract
}

func NewProfileRegistry(c *Client, address string) (service.ProfileRegistry, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid profile registry address %q", address)
	}
	contract := bind.NewBoundContract(common.HexToAddress(address), profileABI, c.backend, c.backend, c.backend)
	return &profileRegistry{client: c, contract: contract}, nil
}

func (r *profileRegistry) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := r.contract.Call(r.client.callOpts(ctx), &out, method, args...); err != nil {
		metrics.ChainCalls.WithLabelValues(method, "error").Inc()
		return nil, chainError(method, "", err)
	}
	metrics.ChainCalls.WithLabelValues(method, "ok").Inc()
	return out, nil
}

func (r *profileRegistry) HasProfile(ctx context.Context, address string) (bool, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return false, err
	}
	out, err := r.call(ctx, "hasProfile", addr)
	if err != nil {
		return false, err
	}
	return *abiConvert[bool](out[0]), nil
}

func (r *profileRegistry) ProfileCID(ctx context.Context, address string) (string, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return "", err
	}
	out, err := r.call(ctx, "getProfile", addr)
	if err != nil {
		return "", err
	}
	return *abiConvert[string](out[0]), nil
}

func (r *profileRegistry) LastUpdated(ctx context.Context, address string) (time.Time, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return time.Time{}, err
	}
	out, err := r.call(ctx, "lastUpdated", addr)
	if err != nil {
		return time.Time{}, err
	}
	ts := *abiConvert[*big.Int](out[0])
	if ts == nil || ts.Sign() == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64(), 0).UTC(), nil
}

func (r *profileRegistry) UpdateCooldown(ctx context.Context) (time.Duration, error) {
	out, err := r.call(ctx, "UPDATE_COOLDOWN")
	if err != nil {
		return 0, err
	}
	secs := *abiConvert[*big.Int](out[0])
	if secs == nil {
		return 0, &apperror.ChainError{Op: "UPDATE_COOLDOWN", Reason: "unexpected return type"}
	}
	return time.Duration(secs.Int64()) * time.Second, nil
}

func (r *profileRegistry) CreateProfile(ctx context.Context, sess wallet.Session, cid string) (service.PendingTx, error) {
	return r.transact(ctx, sess, "createProfile", cid)
}

func (r *profileRegistry) UpdateProfile(ctx context.Context, sess wallet.Session, cid string) (service.PendingTx, error) {
	return r.transact(ctx, sess, "updateProfile", cid)
}

func (r *profileRegistry) transact(ctx context.Context, sess wallet.Session, method string, args ...interface{}) (service.PendingTx, error) {
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
	return r.client.pending(method, tx, nil), nil
}
