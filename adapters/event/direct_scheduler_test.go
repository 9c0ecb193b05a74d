package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/pkg/logger"
)

type recordingHandler struct {
	mu   sync.Mutex
	cids []string
	ctxs []error
	fail string
}

func (h *recordingHandler) ProcessEvent(ctx context.Context, ev service.PinEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cids = append(h.cids, ev.CID)
	h.ctxs = append(h.ctxs, ctx.Err())
	if ev.CID == h.fail {
		return errors.New("unpin failed")
	}
	return nil
}

func TestDirectScheduler(t *testing.T) {
	h := &recordingHandler{fail: "bafy-2"}
	s := NewDirectScheduler(h, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Schedule(ctx,
		service.PinEvent{EventType: service.EventCIDSuperseded, CID: "bafy-1"},
		service.PinEvent{EventType: service.EventCIDSuperseded, CID: "bafy-2"},
		service.PinEvent{EventType: service.EventCIDSuperseded, CID: "bafy-3"},
	))
	// The request finishing must not cancel the cleanup.
	cancel()
	require.NoError(t, s.Schedule(ctx))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"bafy-1", "bafy-2", "bafy-3"}, h.cids)
	for _, err := range h.ctxs {
		assert.NoError(t, err)
	}
}
