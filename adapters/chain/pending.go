package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/metrics"
)

type pendingTx struct {
	client *Client
	op     string
	tx     *types.Transaction
	// logs extracts a created project id from the receipt, if any.
	logs func([]*types.Log) *uint64
}

func (c *Client) pending(op string, tx *types.Transaction, logs func([]*types.Log) *uint64) service.PendingTx {
	return &pendingTx{client: c, op: op, tx: tx, logs: logs}
}

func (p *pendingTx) Hash() string { return p.tx.Hash().Hex() }

// Confirm waits for the receipt. The wait is bounded by the configured
// confirm timeout, if any; the transaction itself is never cancelled.
func (p *pendingTx) Confirm(ctx context.Context) (*service.Receipt, error) {
	if p.client.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.client.confirmTimeout)
		defer cancel()
	}

	rcpt, err := bind.WaitMined(ctx, p.client.backend, p.tx)
	if err != nil {
		metrics.ChainCalls.WithLabelValues(p.op, "unconfirmed").Inc()
		return nil, &apperror.ChainError{Op: p.op, TxHash: p.Hash(), Err: fmt.Errorf("waiting for receipt: %w", err)}
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		metrics.ChainCalls.WithLabelValues(p.op, "reverted").Inc()
		return nil, p.replay(ctx, rcpt)
	}

	metrics.ChainCalls.WithLabelValues(p.op, "confirmed").Inc()
	out := &service.Receipt{TxHash: p.Hash(), BlockNumber: rcpt.BlockNumber.Uint64()}
	if p.logs != nil {
		out.ProjectID = p.logs(rcpt.Logs)
	}
	return out, nil
}

// replay re-executes a failed transaction as a call at its block to get
// the revert reason, which receipts do not carry.
func (p *pendingTx) replay(ctx context.Context, rcpt *types.Receipt) error {
	msg := ethereum.CallMsg{
		From:  p.client.from,
		To:    p.tx.To(),
		Gas:   p.tx.Gas(),
		Value: p.tx.Value(),
		Data:  p.tx.Data(),
	}
	_, err := p.client.backend.CallContract(ctx, msg, rcpt.BlockNumber)
	if err == nil {
		p.client.logger.Warn("Reverted transaction succeeded on replay", zap.String("tx", p.Hash()))
		return &apperror.ChainError{Op: p.op, TxHash: p.Hash(), Err: errors.New("transaction reverted")}
	}
	return chainError(p.op, p.Hash(), err)
}

// createdProjectID reads the id from a ProjectCreated log.
func createdProjectID(logs []*types.Log) *uint64 {
	event := projectABI.Events["ProjectCreated"]
	for _, l := range logs {
		if l == nil || len(l.Topics) < 2 || l.Topics[0] != event.ID {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if !id.IsUint64() {
			continue
		}
		v := id.Uint64()
		return &v
	}
	return nil
}
