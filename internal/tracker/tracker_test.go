package tracker

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type ledger struct {
	mu    sync.Mutex
	hours map[string]float64
	err   error
}

func (l *ledger) add(id string, hours float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.hours[id] += hours
	return nil
}

func (l *ledger) get(id string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hours[id]
}

func newTracker() (*Tracker, *fakeClock, *ledger) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := &ledger{hours: map[string]float64{}}
	return New(l.add, WithClock(clock.Now)), clock, l
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestStartStop(t *testing.T) {
	tr, clock, l := newTracker()

	if err := tr.Start("task-1"); err != nil {
		t.Fatalf("Start() err=%v, want nil", err)
	}
	clock.Advance(90 * time.Second)

	id, hours, err := tr.Stop()
	if err != nil {
		t.Fatalf("Stop() err=%v, want nil", err)
	}
	if id != "task-1" {
		t.Fatalf("Stop() id=%q, want task-1", id)
	}
	if !almostEqual(hours, 0.025) || !almostEqual(l.get("task-1"), 0.025) {
		t.Fatalf("hours=%v recorded=%v, want 0.025", hours, l.get("task-1"))
	}
	if _, active := tr.Active(); active {
		t.Fatalf("Active() = true after Stop()")
	}
}

func TestStop_Idle(t *testing.T) {
	tr, _, l := newTracker()

	id, hours, err := tr.Stop()
	if err != nil || id != "" || hours != 0 {
		t.Fatalf("Stop() = (%q, %v, %v), want no-op", id, hours, err)
	}
	if len(l.hours) != 0 {
		t.Fatalf("Stop() on idle tracker recorded hours: %v", l.hours)
	}
}

func TestStart_SwitchesTask(t *testing.T) {
	tr, clock, l := newTracker()

	_ = tr.Start("a")
	clock.Advance(30 * time.Minute)
	if err := tr.Start("b"); err != nil {
		t.Fatalf("Start(b) err=%v, want nil", err)
	}

	if !almostEqual(l.get("a"), 0.5) {
		t.Fatalf("a hours=%v, want 0.5", l.get("a"))
	}
	state, active := tr.Active()
	if !active || state.TaskID != "b" {
		t.Fatalf("Active() = (%+v, %v), want b", state, active)
	}

	clock.Advance(15 * time.Minute)
	_, _, _ = tr.Stop()
	if !almostEqual(l.get("b"), 0.25) || !almostEqual(l.get("a"), 0.5) {
		t.Fatalf("hours=%v, want a=0.5 b=0.25", l.hours)
	}
}

func TestStart_SameTaskKeepsRunning(t *testing.T) {
	tr, clock, l := newTracker()

	_ = tr.Start("a")
	clock.Advance(time.Hour)
	_ = tr.Start("a")
	clock.Advance(time.Hour)
	_, _, _ = tr.Stop()

	if !almostEqual(l.get("a"), 2) {
		t.Fatalf("a hours=%v, want 2", l.get("a"))
	}
}

func TestFlush_NoDoubleCount(t *testing.T) {
	tr, clock, l := newTracker()

	_ = tr.Start("a")
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		if err := tr.Flush(); err != nil {
			t.Fatalf("Flush() err=%v, want nil", err)
		}
	}
	clock.Advance(30 * time.Second)
	_, hours, _ := tr.Stop()

	if !almostEqual(hours, 0.5/60) {
		t.Fatalf("Stop() hours=%v, want only the unflushed 30s", hours)
	}
	if !almostEqual(l.get("a"), 3.5/60) {
		t.Fatalf("a hours=%v, want %v", l.get("a"), 3.5/60)
	}
}

func TestStopIf(t *testing.T) {
	tr, clock, l := newTracker()

	_ = tr.Start("a")
	clock.Advance(time.Hour)

	stopped, err := tr.StopIf("b")
	if err != nil || stopped {
		t.Fatalf("StopIf(b) = (%v, %v), want (false, nil)", stopped, err)
	}
	stopped, err = tr.StopIf("a")
	if err != nil || !stopped {
		t.Fatalf("StopIf(a) = (%v, %v), want (true, nil)", stopped, err)
	}
	if !almostEqual(l.get("a"), 1) {
		t.Fatalf("a hours=%v, want 1", l.get("a"))
	}
}

func TestDiscard(t *testing.T) {
	tr, clock, l := newTracker()

	_ = tr.Start("a")
	clock.Advance(time.Hour)

	if tr.Discard("b") {
		t.Fatalf("Discard(b) = true, want false")
	}
	if !tr.Discard("a") {
		t.Fatalf("Discard(a) = false, want true")
	}
	if l.get("a") != 0 {
		t.Fatalf("Discard() flushed %v hours", l.get("a"))
	}
	if err := tr.Flush(); err != nil || l.get("a") != 0 {
		t.Fatalf("Flush() after Discard() recorded hours")
	}
}

func TestStop_AccumulateError(t *testing.T) {
	tr, clock, l := newTracker()
	boom := errors.New("boom")

	_ = tr.Start("a")
	clock.Advance(time.Minute)
	l.err = boom

	if _, _, err := tr.Stop(); !errors.Is(err, boom) {
		t.Fatalf("Stop() err=%v, want %v", err, boom)
	}
	if _, active := tr.Active(); active {
		t.Fatalf("Stop() kept tracker active after error")
	}
}

func TestStart_EmptyID(t *testing.T) {
	tr, _, _ := newTracker()
	if err := tr.Start(""); err == nil {
		t.Fatalf("Start(\"\") err=nil, want non-nil")
	}
}

func TestRun_PeriodicFlush(t *testing.T) {
	var mu sync.Mutex
	total := 0.0
	flushed := make(chan struct{}, 16)

	tr := New(func(id string, hours float64) error {
		mu.Lock()
		total += hours
		mu.Unlock()
		flushed <- struct{}{}
		return nil
	}, WithFlushInterval(10*time.Millisecond))

	_ = tr.Start("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatalf("no periodic flush within 2s")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() err=%v, want nil", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if total <= 0 {
		t.Fatalf("total=%v, want > 0", total)
	}
}

func TestConcurrentFlushAndStop(t *testing.T) {
	tr, clock, l := newTracker()
	_ = tr.Start("a")
	clock.Advance(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tr.Flush()
		}()
		go func() {
			defer wg.Done()
			_, _ = tr.StopIf("a")
		}()
	}
	wg.Wait()

	if !almostEqual(l.get("a"), 1) {
		t.Fatalf("a hours=%v, want exactly 1", l.get("a"))
	}
}
