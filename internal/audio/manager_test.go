package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestContextManager_LazyCreate(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)

	if m.State() != ContextUninitialized {
		t.Errorf("Expected uninitialized, got %s", m.State())
	}
	if backend.Created() != 0 {
		t.Fatal("Context created before first use")
	}

	c1, err := m.Context()
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	c2, err := m.Context()
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if c1 != c2 {
		t.Error("Context should be idempotent")
	}
	if c1.State() != ContextRunning {
		t.Errorf("Expected running, got %s", c1.State())
	}
	if m.Created() != 1 {
		t.Errorf("Expected 1 context, got %d", m.Created())
	}
}

func TestContextManager_RecreatesClosed(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)

	first, _ := m.Context()
	backend.Last().SimulateClose()

	second, err := m.Context()
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if second == first {
		t.Fatal("Closed context was returned")
	}
	if second.State() != ContextRunning {
		t.Errorf("Expected running, got %s", second.State())
	}

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if calls := backend.Last().ResumeCalls(); calls != 0 {
		t.Errorf("Resume of a running context reached the platform %d times", calls)
	}
}

func TestContextManager_ConcurrentResume(t *testing.T) {
	backend := NewMockBackend(0)
	backend.StartSuspended(true)
	m := NewContextManager(backend)

	if _, err := m.Context(); err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	mock := backend.Last()
	release := mock.BlockResume()

	var started, done sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			errs <- m.Resume(context.Background())
		}()
	}
	started.Wait()
	waitFor(t, "platform resume", func() bool { return mock.ResumeCalls() == 1 })
	time.Sleep(20 * time.Millisecond)
	release()
	done.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Resume failed: %v", err)
		}
	}
	if calls := mock.ResumeCalls(); calls != 1 {
		t.Errorf("Expected 1 platform resume, got %d", calls)
	}
	if mock.State() != ContextRunning {
		t.Errorf("Expected running, got %s", mock.State())
	}
}

func TestContextManager_ResumeFailure(t *testing.T) {
	backend := NewMockBackend(0)
	backend.StartSuspended(true)
	m := NewContextManager(backend)
	_, _ = m.Context()
	backend.Last().SetResumeError(errors.New("device busy"))

	err := m.Resume(context.Background())
	if !errors.Is(err, ErrContext) {
		t.Errorf("Expected ErrContext, got %v", err)
	}
}

func TestContextManager_ResumeCancelled(t *testing.T) {
	backend := NewMockBackend(0)
	backend.StartSuspended(true)
	m := NewContextManager(backend)
	_, _ = m.Context()
	release := backend.Last().BlockResume()
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Resume(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestContextManager_Reset(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)

	_, _ = m.Context()
	old := backend.Last()

	fresh, err := m.Reset()
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if old.State() != ContextClosed {
		t.Errorf("Old context should be closed, got %s", old.State())
	}
	if fresh.State() != ContextRunning || backend.Created() != 2 {
		t.Errorf("Expected a second running context, got %s after %d", fresh.State(), backend.Created())
	}
}

func TestContextManager_ResetLogsCloseError(t *testing.T) {
	var out bytes.Buffer
	level := log.GetLevel()
	log.SetOutput(&out)
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(level)
	})

	backend := NewMockBackend(0)
	m := NewContextManager(backend)
	_, _ = m.Context()
	backend.Last().SetCloseError(errors.New("device busy"))

	if _, err := m.Reset(); err != nil {
		t.Fatalf("Reset should swallow the close error, got %v", err)
	}
	if backend.Created() != 2 {
		t.Errorf("Expected a fresh context, created %d", backend.Created())
	}
	if !strings.Contains(out.String(), "device busy") {
		t.Errorf("Close error should be logged, got %q", out.String())
	}
}

func TestContextManager_CreateError(t *testing.T) {
	backend := NewMockBackend(0)
	backend.SetCreateError(errors.New("no device"))
	m := NewContextManager(backend)

	if _, err := m.Context(); !errors.Is(err, ErrContext) {
		t.Errorf("Expected ErrContext, got %v", err)
	}
	if m.State() != ContextUninitialized {
		t.Errorf("Failed create should leave no context, got %s", m.State())
	}
}

func TestContextManager_RecoverResumesSuspended(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)
	_, _ = m.Context()
	backend.Last().SimulateSuspend()

	if err := m.Recover(context.Background(), SignalFocus); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if m.State() != ContextRunning {
		t.Errorf("Expected running after recovery, got %s", m.State())
	}
	if backend.Created() != 1 {
		t.Errorf("Recovery should resume, not recreate; created %d", backend.Created())
	}
}

func TestContextManager_RecoverResetsOnFailure(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)
	_, _ = m.Context()
	stuck := backend.Last()
	stuck.SimulateSuspend()
	stuck.SetResumeError(errors.New("stuck"))

	if err := m.Recover(context.Background(), SignalVisible); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if backend.Created() != 2 {
		t.Errorf("Expected stuck context to be replaced, created %d", backend.Created())
	}
	if m.State() != ContextRunning {
		t.Errorf("Expected running, got %s", m.State())
	}
}

func TestContextManager_RecoverGuard(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)
	_, _ = m.Context()
	mock := backend.Last()
	mock.SimulateSuspend()
	release := mock.BlockResume()

	first := make(chan error, 1)
	go func() { first <- m.Recover(context.Background(), SignalFocus) }()
	waitFor(t, "first recovery", func() bool { return mock.ResumeCalls() == 1 })

	if err := m.Recover(context.Background(), SignalVisible); err != nil {
		t.Errorf("Overlapping recovery should be dropped, got %v", err)
	}
	release()

	if err := <-first; err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if calls := mock.ResumeCalls(); calls != 1 {
		t.Errorf("Expected one resume, got %d", calls)
	}
}

func TestContextManager_RecoverBeforeFirstUse(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)

	if err := m.Recover(context.Background(), SignalDeviceChange); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if backend.Created() != 0 {
		t.Error("Recovery should not create a context nobody asked for")
	}
}

func TestContextManager_Suspend(t *testing.T) {
	backend := NewMockBackend(0)
	m := NewContextManager(backend)

	if err := m.Suspend(); err != nil {
		t.Fatalf("Suspend without context failed: %v", err)
	}
	_, _ = m.Context()
	if err := m.Suspend(); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	if m.State() != ContextSuspended {
		t.Errorf("Expected suspended, got %s", m.State())
	}
}
