// Package janitor runs the periodic housekeeping of the access layer:
// evicting idle permission stores, purging expired sessions and snapshots,
// and reloading the role policy.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"storedesk-admin/core/utils"
)

type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type Stats struct {
	TicksTotal      int64
	TickErrorsTotal int64
	LastTickAtUTC   *time.Time
}

type Janitor struct {
	logger *utils.Logger
	jobs   []Job

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
	stats   map[string]*Stats
}

// New validates every schedule up front so a typo fails startup.
func New(logger *utils.Logger, jobs ...Job) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	stats := map[string]*Stats{}
	var kept []Job
	for _, j := range jobs {
		if j.Run == nil || j.Schedule == "" {
			continue
		}
		if _, err := parser.Parse(j.Schedule); err != nil {
			return nil, fmt.Errorf("janitor job %s schedule %q: %w", j.Name, j.Schedule, err)
		}
		kept = append(kept, j)
		stats[j.Name] = &Stats{}
	}
	return &Janitor{logger: logger, jobs: kept, stats: stats}, nil
}

func (j *Janitor) StartWithContext(ctx context.Context) {
	if j == nil || len(j.jobs) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)))
	for _, job := range j.jobs {
		job := job
		if _, err := c.AddFunc(job.Schedule, func() { j.runJob(runCtx, job) }); err != nil {
			j.logger.Errorf("janitor add %s: %v", job.Name, err)
		}
	}
	c.Start()
	j.cron = c
	j.cancel = cancel
	j.running = true
	j.logger.Printf("janitor started jobs=%d", len(j.jobs))
}

func (j *Janitor) StopWithContext(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel, j.running = nil, nil, false
	j.mu.Unlock()

	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes every job once, synchronously.
func (j *Janitor) RunNow(ctx context.Context) error {
	if j == nil {
		return nil
	}
	var errs []error
	for _, job := range j.jobs {
		if err := j.runJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (j *Janitor) runJob(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := job.Run(ctx)
	now := time.Now().UTC()
	j.mu.Lock()
	st := j.stats[job.Name]
	st.TicksTotal++
	st.LastTickAtUTC = &now
	if err != nil {
		st.TickErrorsTotal++
	}
	j.mu.Unlock()
	if err != nil {
		j.logger.Errorf("janitor %s: %v", job.Name, err)
	}
	return err
}

func (j *Janitor) StatsSnapshot() map[string]Stats {
	out := map[string]Stats{}
	if j == nil {
		return out
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for name, st := range j.stats {
		cp := *st
		if st.LastTickAtUTC != nil {
			t := *st.LastTickAtUTC
			cp.LastTickAtUTC = &t
		}
		out[name] = cp
	}
	return out
}
