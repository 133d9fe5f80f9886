package console

import (
	"context"
	"time"
)

const reopenKey = "reopen"

// Reopen closes the port, waits out the backoff and opens it again.
// Concurrent callers share a single attempt and its outcome.
func (l *Link) Reopen(ctx context.Context) error {
	ch := l.flight.DoChan(reopenKey, func() (any, error) {
		return nil, l.reopen(ctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) reopen(ctx context.Context) error {
	l.state.Store(int32(StateReopening))
	failures := l.failures.Load()
	l.log.Warn().
		Int32("failures", failures).
		Dur("backoff", l.backoff).
		Msg("attempting to reopen serial port")

	l.mu.Lock()
	if err := l.closeLocked(); err != nil {
		l.log.Debug().Err(err).Msg("error closing serial port")
	}
	l.mu.Unlock()

	if l.escalate != nil && l.escalateAfter > 0 && failures >= l.escalateAfter {
		l.log.Warn().Int32("failures", failures).Msg("reopen keeps failing, resetting USB device")
		if err := l.escalate(); err != nil {
			l.log.Error().Err(err).Msg("USB reset failed")
		}
		l.failures.Store(0)
	}

	timer := time.NewTimer(l.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		l.state.Store(int32(StateClosed))
		return ctx.Err()
	}

	l.mu.Lock()
	err := l.openLocked()
	l.mu.Unlock()
	if err != nil {
		l.failures.Add(1)
		l.state.Store(int32(StateClosed))
		l.log.Error().Err(err).Msg("failed to reopen serial port")
		return err
	}

	l.failures.Store(0)
	l.log.Info().Msg("serial port reopened")
	return nil
}
