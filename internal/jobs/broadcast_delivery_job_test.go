package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeRedeliverer struct {
	mu        sync.Mutex
	calls     int
	minAges   []time.Duration
	delivered int
	err       error
}

func (f *fakeRedeliverer) RedeliverPending(ctx context.Context, minAge time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.minAges = append(f.minAges, minAge)
	return f.delivered, f.err
}

func (f *fakeRedeliverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunOnce(t *testing.T) {
	log, hook := test.NewNullLogger()
	fake := &fakeRedeliverer{delivered: 2}
	job := NewBroadcastDeliveryJob(fake, time.Minute, 3*time.Minute, log)

	if got := job.RunOnce(context.Background()); got != 2 {
		t.Errorf("expected 2 delivered, got %d", got)
	}
	if len(fake.minAges) != 1 || fake.minAges[0] != 3*time.Minute {
		t.Errorf("expected min age to be passed through, got %v", fake.minAges)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.InfoLevel {
		t.Errorf("expected an info entry, got %+v", entry)
	}
}

func TestRunOnceLogsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	fake := &fakeRedeliverer{err: errors.New("db down")}
	job := NewBroadcastDeliveryJob(fake, time.Minute, time.Minute, log)

	if got := job.RunOnce(context.Background()); got != 0 {
		t.Errorf("expected 0 delivered, got %d", got)
	}

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			found = true
		}
	}
	if !found {
		t.Error("expected the failure to be logged")
	}
}

func TestStartSchedulesRedelivery(t *testing.T) {
	log, _ := test.NewNullLogger()
	fake := &fakeRedeliverer{}
	job := NewBroadcastDeliveryJob(fake, 20*time.Millisecond, 0, log)

	if err := job.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fake.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := job.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if fake.callCount() < 2 {
		t.Errorf("expected repeated runs, got %d", fake.callCount())
	}
}

func TestStopWithoutStart(t *testing.T) {
	log, _ := test.NewNullLogger()
	job := NewBroadcastDeliveryJob(&fakeRedeliverer{}, time.Minute, time.Minute, log)
	if err := job.Stop(); err != nil {
		t.Errorf("expected Stop on an idle job to succeed, got %v", err)
	}
}
