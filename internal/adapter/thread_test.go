package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunOnPausedInterruptsAndResumes(t *testing.T) {
	h := newHarness(t, nil)

	_, _, resumesBefore, interruptsBefore := h.fake.stats()

	ran := false
	err := h.thread().RunOnPaused(testContext(t), func(ctx context.Context) error {
		ran = true
		if got := h.thread().State(); got != ThreadPaused {
			t.Errorf("state during work = %v, want %v", got, ThreadPaused)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunOnPaused() error = %v", err)
	}
	if !ran {
		t.Fatal("work did not run")
	}

	h.waitState(ThreadRunning)
	_, _, resumes, interrupts := h.fake.stats()
	if interrupts-interruptsBefore != 1 {
		t.Errorf("interrupts = %d, want 1", interrupts-interruptsBefore)
	}
	if resumes-resumesBefore != 1 {
		t.Errorf("resumes = %d, want 1", resumes-resumesBefore)
	}

	// The internal pause and resume are not reported.
	select {
	case reason := <-h.stopped:
		t.Errorf("unexpected stopped notification %q", reason)
	case <-h.continued:
		t.Error("unexpected continued notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunOnPausedLeavesUserPauseInPlace(t *testing.T) {
	h := newHarness(t, nil)

	h.pause()
	if reason := h.awaitStopped(); reason != "interrupt" {
		t.Errorf("stop reason = %q, want %q", reason, "interrupt")
	}
	_, _, resumesBefore, _ := h.fake.stats()

	err := h.thread().RunOnPaused(testContext(t), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("RunOnPaused() error = %v", err)
	}

	if got := h.thread().State(); got != ThreadPaused {
		t.Errorf("state after work = %v, want %v", got, ThreadPaused)
	}
	_, _, resumes, _ := h.fake.stats()
	if resumes != resumesBefore {
		t.Errorf("resumes = %d, want %d (user pause must survive)", resumes, resumesBefore)
	}
}

func TestRunOnPausedResumesExactlyOnceOnFailure(t *testing.T) {
	h := newHarness(t, nil)

	_, _, resumesBefore, _ := h.fake.stats()
	wantErr := errors.New("work failed")

	err := h.thread().RunOnPaused(testContext(t), func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("RunOnPaused() error = %v, want %v", err, wantErr)
	}

	h.waitState(ThreadRunning)
	_, _, resumes, _ := h.fake.stats()
	if resumes-resumesBefore != 1 {
		t.Errorf("resumes = %d, want 1 (failed work must still release the thread)", resumes-resumesBefore)
	}
}

func TestRunOnPausedSerializes(t *testing.T) {
	h := newHarness(t, nil)

	release := make(chan struct{})
	firstInside := make(chan struct{})
	var mu sync.Mutex
	var order []string

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.thread().RunOnPaused(testContext(t), func(ctx context.Context) error {
			close(firstInside)
			mu.Lock()
			order = append(order, "first-start")
			mu.Unlock()
			<-release
			mu.Lock()
			order = append(order, "first-end")
			mu.Unlock()
			return nil
		})
	}()

	<-firstInside
	go func() {
		defer wg.Done()
		h.thread().RunOnPaused(testContext(t), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	// Give the second caller a chance to overtake if it could.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if len(order) != 1 || order[0] != "first-start" {
		t.Errorf("second work started before first finished: %v", order)
	}
	mu.Unlock()

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first-start", "first-end", "second"}
	for i, step := range want {
		if order[i] != step {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestStepReportsStop(t *testing.T) {
	h := newHarness(t, nil)

	h.pause()
	h.awaitStopped()

	if err := h.thread().StepOver(testContext(t)); err != nil {
		t.Fatalf("StepOver() error = %v", err)
	}
	if reason := h.awaitStopped(); reason != "resumeLimit" {
		t.Errorf("stop reason = %q, want %q", reason, "resumeLimit")
	}
	if got := h.thread().State(); got != ThreadPaused {
		t.Errorf("state after step = %v, want %v", got, ThreadPaused)
	}
}

func TestRunControlRequiresPause(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.thread().StepOver(testContext(t)); !errors.Is(err, ErrNotPaused) {
		t.Errorf("StepOver() on running thread error = %v, want %v", err, ErrNotPaused)
	}
	if err := h.thread().Resume(testContext(t)); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume() on running thread error = %v, want %v", err, ErrNotPaused)
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	h.pause()
	_, _, _, interruptsBefore := h.fake.stats()
	if err := h.thread().Pause(testContext(t)); err != nil {
		t.Fatalf("Pause() on paused thread error = %v", err)
	}
	_, _, _, interrupts := h.fake.stats()
	if interrupts != interruptsBefore {
		t.Errorf("interrupts = %d, want %d", interrupts, interruptsBefore)
	}
}
