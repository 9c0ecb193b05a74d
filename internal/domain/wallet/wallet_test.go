package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/openforge/pkg/apperror"
)

func TestSession(t *testing.T) {
	var zero Session
	_, err := zero.Address()
	assert.ErrorIs(t, err, apperror.ErrWalletDisconnected)
	assert.False(t, Disconnected().IsConnected())

	s := Connected("0xAbC0000000000000000000000000000000000001", 11155111)
	addr, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, "0xAbC0000000000000000000000000000000000001", addr)
	assert.EqualValues(t, 11155111, s.ChainID())
}

func TestAddress(t *testing.T) {
	assert.True(t, IsAddress("0xAbC0000000000000000000000000000000000001"))
	assert.False(t, IsAddress("AbC0000000000000000000000000000000000001"))
	assert.False(t, IsAddress("0xAbC"))
	assert.False(t, IsAddress("0xZZZ0000000000000000000000000000000000001"))
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", Normalize(" 0xAbC0000000000000000000000000000000000001 "))
}
