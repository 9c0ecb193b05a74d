package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/pkg/logger"
)

// EventHandler processes one pin event; the cleanup usecase satisfies it.
type EventHandler interface {
	ProcessEvent(ctx context.Context, ev service.PinEvent) error
}

// DirectScheduler runs cleanup in a detached goroutine when no broker is
// configured. Events still queued at shutdown are lost; the worker sweep
// picks them up later.
type DirectScheduler struct {
	handler EventHandler
	timeout time.Duration
	logger  logger.Logger
	wg      sync.WaitGroup
}

func NewDirectScheduler(handler EventHandler, log logger.Logger) *DirectScheduler {
	return &DirectScheduler{handler: handler, timeout: 30 * time.Second, logger: log}
}

func (s *DirectScheduler) Schedule(ctx context.Context, events ...service.PinEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		for _, ev := range events {
			if err := s.handler.ProcessEvent(ctx, ev); err != nil {
				s.logger.Warn("Direct cleanup failed", zap.String("cid", ev.CID), zap.Error(err))
			}
		}
	}()
	return nil
}

// Close waits for in-flight cleanups.
func (s *DirectScheduler) Close() error {
	s.wg.Wait()
	return nil
}
