// Package chain binds the profile and project registry contracts with
// go-ethereum. The server signs with one configured key.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

// Backend is what the registries need from a node connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Client struct {
	backend        Backend
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	logger         logger.Logger
}

// Dial connects to cfg.Chain.RPCURL and loads the signing key. Without a
// key the client is read-only and Session reports disconnected.
func Dial(ctx context.Context, cfg config.Config, log logger.Logger) (*Client, error) {
	if cfg.Chain.RPCURL == "" {
		return nil, fmt.Errorf("chain rpc url has not config")
	}
	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc: %w", err)
	}
	chainID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	var key *ecdsa.PrivateKey
	if cfg.Chain.PrivateKey != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.Chain.PrivateKey, "0x"))
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("invalid chain private key: %w", err)
		}
	}

	c := NewClient(ec, chainID, key, cfg.Chain.ConfirmTimeout, log)
	log.Info("Connected to chain", zap.String("chain_id", chainID.String()), zap.Bool("signer", key != nil))
	return c, nil
}

func NewClient(backend Backend, chainID *big.Int, key *ecdsa.PrivateKey, confirmTimeout time.Duration, log logger.Logger) *Client {
	c := &Client{backend: backend, key: key, chainID: chainID, confirmTimeout: confirmTimeout, logger: log}
	if key != nil {
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c
}

// Session is the wallet the server publishes as.
func (c *Client) Session() wallet.Session {
	if c.key == nil {
		return wallet.Disconnected()
	}
	return wallet.Connected(wallet.Normalize(c.from.Hex()), c.chainID.Int64())
}

// transactor checks that sess is the signer this client holds.
func (c *Client) transactor(ctx context.Context, sess wallet.Session) (*bind.TransactOpts, error) {
	addr, err := sess.Address()
	if err != nil {
		return nil, err
	}
	if c.key == nil || !strings.EqualFold(addr, c.from.Hex()) {
		return nil, apperror.NewPermissionDenied("session account is not the configured signer")
	}
	if sess.ChainID() != 0 && sess.ChainID() != c.chainID.Int64() {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("session is on chain %d, registry on %s", sess.ChainID(), c.chainID), nil)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (c *Client) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func parseAddress(address string) (common.Address, error) {
	if !wallet.IsAddress(address) {
		return common.Address{}, apperror.NewValidation("address", "not a 0x-prefixed 20 byte address")
	}
	return common.HexToAddress(address), nil
}
