package chain

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/apperror"
)

var secondsRegex = regexp.MustCompile(`(?i)(\d+)\s*seconds?`)

// revertData extracts the raw revert payload from an RPC error, if the
// node attached one.
func revertData(err error) []byte {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil
	}
	switch v := de.ErrorData().(type) {
	case string:
		data, decErr := hexutil.Decode(v)
		if decErr != nil {
			return nil
		}
		return data
	case []byte:
		return v
	}
	return nil
}

// decodeRevert turns revert data into a typed error. Custom errors
// declared in the registry ABIs come first, then a plain Error(string).
// The returned reason is human readable; err is nil when nothing decoded.
func decodeRevert(data []byte) (reason string, err error) {
	if len(data) < 4 {
		return "", nil
	}
	var selector [4]byte
	copy(selector[:], data[:4])

	for _, parsed := range []abi.ABI{profileABI, projectABI} {
		abiErr, lookupErr := parsed.ErrorByID(selector)
		if lookupErr != nil {
			continue
		}
		values, unpackErr := abiErr.Inputs.Unpack(data[4:])
		if unpackErr != nil {
			return abiErr.Name, fmt.Errorf("unpack %s: %w", abiErr.Name, unpackErr)
		}
		return abiErr.Name, customError(abiErr.Name, values)
	}

	if msg, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		return msg, legacyReason(msg)
	}
	return "", nil
}

func customError(name string, values []interface{}) error {
	switch name {
	case "CooldownActive":
		var remaining time.Duration
		if len(values) == 1 {
			if n, ok := values[0].(*big.Int); ok && n.IsInt64() {
				remaining = time.Duration(n.Int64()) * time.Second
			}
		}
		return &apperror.CooldownActiveError{Remaining: remaining}
	case "ProfileAlreadyExists":
		return &apperror.AlreadyExistsError{Resource: "profile", Key: "sender"}
	case "ProfileNotFound":
		return apperror.NewNotFound("profile", "sender")
	case "ProjectNotFound":
		return apperror.NewNotFound("project", "id")
	case "NotBuilder":
		return apperror.NewPermissionDenied("only the project builder can do this")
	case "InvalidStatusTransition":
		from, to := "unknown", "unknown"
		if len(values) == 2 {
			if v, ok := values[0].(uint8); ok {
				from = project.FromChain(v).String()
			}
			if v, ok := values[1].(uint8); ok {
				to = project.FromChain(v).String()
			}
		}
		return &apperror.InvalidStateError{Resource: "project", From: from, To: to}
	}
	return nil
}

// legacyReason maps old require-string reverts. Only the cooldown text
// is recognised.
func legacyReason(msg string) error {
	if !strings.Contains(strings.ToLower(msg), "cooldown") {
		return nil
	}
	cooldown := &apperror.CooldownActiveError{}
	if m := secondsRegex.FindStringSubmatch(msg); m != nil {
		if secs, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			cooldown.Remaining = time.Duration(secs) * time.Second
		}
	}
	return cooldown
}

// chainError wraps a failed call, decoding whatever revert data it carries.
func chainError(op, txHash string, err error) error {
	ce := &apperror.ChainError{Op: op, TxHash: txHash, Err: err}
	reason, typed := decodeRevert(revertData(err))
	if reason != "" {
		ce.Reason = reason
	}
	if typed == nil && reason == "" {
		// Some nodes only put the reason in the message text.
		typed = legacyReason(err.Error())
	}
	if typed != nil {
		ce.Err = typed
	}
	return ce
}

func isRevert(err error) bool {
	if revertData(err) != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
