package pin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDigest(t *testing.T) {
	// BLAKE3 of the empty input.
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", Digest(nil))
	assert.Len(t, Digest([]byte("hello")), 64)
	assert.NotEqual(t, Digest([]byte("a")), Digest([]byte("b")))
}

func TestNewEntry(t *testing.T) {
	now := time.Now()
	e := NewEntry("bafy", "d", KindImage, "0xabc", now)
	assert.Equal(t, StatusPinned, e.Status)
	assert.True(t, e.Live())
	assert.Equal(t, now, e.CreatedAt)

	e.Status = StatusSuperseded
	assert.False(t, e.Live())
	e.Status = StatusReferenced
	assert.True(t, e.Live())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPinned, StatusReferenced, StatusSuperseded, StatusUnpinned} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("PINNED").Valid())
}
