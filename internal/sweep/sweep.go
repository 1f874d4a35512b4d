// Package sweep periodically reconciles the stored blocked status of tasks
// with their dependency edges.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/dep"
	"github.com/zulandar/taskyard/internal/store"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Result summarizes one sweep.
type Result struct {
	Checked int
	Changed []dep.Transition
	Failed  int
}

// Sweeper runs reconcile passes on a cron schedule.
type Sweeper struct {
	store    store.Store
	resolver *dep.Resolver
	schedule cron.Schedule
	log      logrus.FieldLogger
}

// New returns a Sweeper for the given cron expression.
func New(s store.Store, expr string, log logrus.FieldLogger) (*Sweeper, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("sweep: parse schedule %q: %w", expr, err)
	}
	return &Sweeper{
		store:    s,
		resolver: dep.NewResolver(s, log),
		schedule: sched,
		log:      log,
	}, nil
}

// next returns the wait until the next fire time after now.
func (s *Sweeper) next(now time.Time) time.Duration {
	d := s.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunOnce reconciles every candidate task. A failure on one task is logged
// and counted; only a failure to list candidates is returned.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ids, err := s.store.ReconcileCandidates(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("sweep: list candidates: %w", err)
	}
	var res Result
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		tr, err := s.resolver.ReconcileStatus(ctx, id)
		if err != nil {
			res.Failed++
			s.log.WithField("task_id", id).WithError(err).Warn("sweep: reconcile failed")
			continue
		}
		if tr.Changed {
			res.Changed = append(res.Changed, tr)
			s.log.WithFields(logrus.Fields{"task_id": id, "from": tr.From, "to": tr.To}).Info("sweep: repaired task status")
		}
	}
	return res, nil
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	timer := time.NewTimer(s.next(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			res, err := s.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				s.log.WithError(err).Error("sweep failed")
			} else {
				s.log.WithFields(logrus.Fields{
					"checked": res.Checked,
					"changed": len(res.Changed),
					"failed":  res.Failed,
				}).Debug("sweep complete")
			}
			timer.Reset(s.next(time.Now()))
		}
	}
}
