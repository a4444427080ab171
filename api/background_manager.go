package api

import (
	"context"
	"errors"
	"time"

	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

type BackgroundWorker interface {
	StartWithContext(context.Context)
	StopWithContext(context.Context) error
}

type BackgroundController interface {
	Start(context.Context)
	Stop(context.Context) error
}

type backgroundManager struct {
	sessions store.SessionStore
	logger   *utils.Logger
	workers  []BackgroundWorker
}

func newBackgroundManager(sessions store.SessionStore, logger *utils.Logger, workers ...BackgroundWorker) *backgroundManager {
	out := make([]BackgroundWorker, 0, len(workers))
	for _, w := range workers {
		if w == nil {
			continue
		}
		out = append(out, w)
	}
	return &backgroundManager{sessions: sessions, logger: logger, workers: out}
}

// BuildBackgroundController purges sessions that expired while the process
// was down, then runs the given workers until Stop.
func BuildBackgroundController(sessions store.SessionStore, logger *utils.Logger, workers ...BackgroundWorker) BackgroundController {
	return newBackgroundManager(sessions, logger, workers...)
}

func (m *backgroundManager) Start(ctx context.Context) {
	if m == nil {
		return
	}
	if m.sessions != nil {
		n, err := m.sessions.PurgeExpired(ctx, time.Now().UTC())
		if err != nil {
			m.logger.Errorf("purge expired sessions on startup: %v", err)
		} else if n > 0 {
			m.logger.Printf("purged %d expired sessions on startup", n)
		}
	}
	for _, w := range m.workers {
		w.StartWithContext(ctx)
	}
}

func (m *backgroundManager) Stop(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, w := range m.workers {
		if err := w.StopWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
