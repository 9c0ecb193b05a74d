// Package wallet models the signer identity that publish operations act as.
package wallet

import (
	"regexp"
	"strings"

	"github.com/khoahotran/openforge/pkg/apperror"
)

var addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return addressRegex.MatchString(s)
}

// Normalize lower-cases an address for use as a cache or ledger key.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Session is passed explicitly into every write operation. The zero value
// is a disconnected session.
type Session struct {
	address   string
	chainID   int64
	connected bool
}

func Connected(address string, chainID int64) Session {
	return Session{address: address, chainID: chainID, connected: true}
}

func Disconnected() Session {
	return Session{}
}

func (s Session) IsConnected() bool { return s.connected }

func (s Session) ChainID() int64 { return s.chainID }

// Address returns the session's account, or ErrWalletDisconnected.
func (s Session) Address() (string, error) {
	if !s.connected {
		return "", apperror.NewWalletDisconnected("connect a wallet before publishing")
	}
	return s.address, nil
}
