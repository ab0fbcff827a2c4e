package service

import (
	"context"
	"exposure/internal/model"
	"fmt"
	"testing"
	"time"
)

func TestNewScheduler(t *testing.T) {
	s, _ := setupMiniredis(t)
	sched := NewScheduler(s, &countingCollector{})
	if sched.Cron == nil || sched.Monitor == nil || sched.Storage != s {
		t.Fatal("Scheduler not wired")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, _ := setupMiniredis(t)
	sched := NewScheduler(s, &countingCollector{})

	if err := sched.Start("0 2 * * *"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(sched.Cron.Entries()) != 1 {
		t.Errorf("Expected one cron entry, got %d", len(sched.Cron.Entries()))
	}
	sched.Stop()
}

func TestScheduler_Start_BadSpec(t *testing.T) {
	s, _ := setupMiniredis(t)
	sched := NewScheduler(s, &countingCollector{})

	if err := sched.Start("every now and then"); err == nil {
		t.Error("Expected error for malformed cron spec")
	}
}

func TestScheduler_RunMonitorJob(t *testing.T) {
	s, _ := setupMiniredis(t)
	ctx := context.Background()
	c := &countingCollector{
		whoisOf: func(domain string, n int) string { return fmt.Sprintf("%s run %d", domain, n) },
	}
	sched := NewScheduler(s, c)

	for _, d := range []string{"example.com", "bad domain", "example.org"} {
		// AddMonitoredItem does not validate; the job has to cope.
		if err := s.AddMonitoredItem(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	if got := sched.RunMonitorJob(ctx); got != 2 {
		t.Errorf("Expected 2 archived reports, got %d", got)
	}
	if len(c.calls) != 2 || c.calls[0] != "example.com" || c.calls[1] != "example.org" {
		t.Errorf("Unexpected collection order %v", c.calls)
	}

	if got := sched.RunMonitorJob(ctx); got != 2 {
		t.Errorf("Expected changed reports to be archived again, got %d", got)
	}
	history, _ := s.GetReportHistory(ctx, "example.org")
	if len(history) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(history))
	}
}

func TestScheduler_RunMonitorJob_StorageDown(t *testing.T) {
	s, mr := setupMiniredis(t)
	mr.Close()

	c := &countingCollector{}
	sched := NewScheduler(s, c)
	if got := sched.RunMonitorJob(context.Background()); got != 0 {
		t.Errorf("Expected nothing archived, got %d", got)
	}
	if len(c.calls) != 0 {
		t.Errorf("Collector should not run without a monitored list, got %v", c.calls)
	}
}

func TestScheduler_RunMonitorJob_Cancelled(t *testing.T) {
	s, _ := setupMiniredis(t)
	ctx, cancel := context.WithCancel(context.Background())
	_ = s.AddMonitoredItem(ctx, "example.com")
	cancel()

	c := &countingCollector{}
	if got := NewScheduler(s, c).RunMonitorJob(ctx); got != 0 || len(c.calls) != 0 {
		t.Errorf("Cancelled job should not collect, got %d %v", got, c.calls)
	}
}

// blockingCollector holds every collection until its context ends.
type blockingCollector struct {
	started chan struct{}
	done    chan error
}

func (b *blockingCollector) Collect(ctx context.Context, domain string, onStep func(step int)) model.Report {
	b.started <- struct{}{}
	<-ctx.Done()
	b.done <- ctx.Err()
	return model.Report{}
}

func TestScheduler_Stop_CancelsRunningJob(t *testing.T) {
	s, _ := setupMiniredis(t)
	ctx := context.Background()
	for _, d := range []string{"example.com", "example.org"} {
		_ = s.AddMonitoredItem(ctx, d)
	}

	c := &blockingCollector{started: make(chan struct{}, 2), done: make(chan error, 2)}
	sched := NewScheduler(s, c)
	if err := sched.Start("@every 1s"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-c.started:
	case <-time.After(5 * time.Second):
		sched.Stop()
		t.Fatal("Scheduled job did not start")
	}

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a job was running")
	}
	if err := <-c.done; err == nil {
		t.Error("Expected the running collection to see a cancelled context")
	}
	if len(c.started) != 0 {
		t.Error("Remaining domains should be skipped after Stop")
	}
}
