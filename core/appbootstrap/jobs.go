package appbootstrap

import (
	"context"
	"time"

	"storedesk-admin/config"
	"storedesk-admin/core/access"
	"storedesk-admin/core/auth"
	"storedesk-admin/core/janitor"
	"storedesk-admin/core/store"
	"storedesk-admin/core/utils"
)

type janitorDeps struct {
	registry       *access.Registry
	sessionManager *auth.SessionManager
	sessions       store.SessionStore
	refreshPolicy  func(context.Context) error
	logger         *utils.Logger
	now            func() time.Time
}

// janitorJobs builds the housekeeping jobs. snapshots is only set for the
// db storage driver; memory and redis expire entries on their own.
func janitorJobs(cfg *config.AppConfig, d janitorDeps, snapshots *store.KVStore) []janitor.Job {
	if d.now == nil {
		d.now = time.Now
	}
	idle := cfg.Sessions.IdleEvict
	jobs := []janitor.Job{
		{
			Name:     "evict_idle_stores",
			Schedule: cfg.Janitor.Schedule,
			Run: func(ctx context.Context) error {
				n := d.registry.EvictIdle(idle)
				forgotten := d.sessionManager.Forget(d.now().Add(-idle))
				if n > 0 || forgotten > 0 {
					d.logger.Debugf("janitor evicted stores=%d activity=%d", n, forgotten)
				}
				return nil
			},
		},
		{
			Name:     "purge_sessions",
			Schedule: cfg.Janitor.Schedule,
			Run: func(ctx context.Context) error {
				n, err := d.sessions.PurgeExpired(ctx, d.now().UTC())
				if err == nil && n > 0 {
					d.logger.Printf("janitor purged sessions=%d", n)
				}
				return err
			},
		},
		{
			Name:     "refresh_policy",
			Schedule: cfg.Janitor.PolicyRefresh,
			Run:      d.refreshPolicy,
		},
	}
	if snapshots != nil {
		jobs = append(jobs, janitor.Job{
			Name:     "purge_snapshots",
			Schedule: cfg.Janitor.Schedule,
			Run: func(ctx context.Context) error {
				_, err := snapshots.Purge(ctx, d.now().UTC())
				return err
			},
		})
	}
	return jobs
}
