package service

import (
	"context"
	"exposure/internal/storage"
	"exposure/internal/utils"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	Cron    *cron.Cron
	Storage *storage.Storage
	Monitor *MonitorService

	// ctx is the base of every scheduled run; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(s *storage.Storage, c ReportCollector) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		Cron:    cron.New(),
		Storage: s,
		Monitor: NewMonitorService(s, c),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the monitor job under the standard five-field cron spec
// and starts the cron goroutine.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() {
		s.RunMonitorJob(s.ctx)
	}); err != nil {
		return errors.Wrapf(err, "schedule %q", spec)
	}

	s.Cron.Start()
	utils.Log.Info("scheduler started", utils.Field("schedule", spec))
	return nil
}

// Stop halts the schedule, cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.Cron.Stop().Done()
	utils.Log.Info("scheduler stopped")
}

// RunMonitorJob checks every monitored domain in turn and returns how many
// of them produced a new archive entry.
func (s *Scheduler) RunMonitorJob(ctx context.Context) int {
	items, err := s.Storage.GetMonitoredItems(ctx)
	if err != nil {
		utils.Log.Error("scheduler error getting items", utils.Field("error", err.Error()))
		return 0
	}

	changed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.Monitor.RunCheck(ctx, item)
		if err != nil {
			utils.Log.Error("scheduled check failed", utils.Field("domain", item), utils.Field("error", err.Error()))
			continue
		}
		if ok {
			changed++
		}
	}
	return changed
}
