package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// countingService runs until canceled, optionally failing first
type countingService struct {
	name     string
	starts   atomic.Int32
	failures int32
	err      error
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewTree_Defaults(t *testing.T) {
	tree := NewTree(nil, TreeConfig{})

	if tree.Root() == nil {
		t.Fatal("root supervisor should not be nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
}

func TestTree_StartsEveryLayer(t *testing.T) {
	tree := NewTree(zap.NewNop(), TreeConfig{ShutdownTimeout: time.Second})

	control := &countingService{name: "control"}
	messaging := &countingService{name: "messaging"}
	api := &countingService{name: "api"}
	tree.AddControlService(control)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool {
		return control.starts.Load() == 1 && messaging.starts.Load() == 1 && api.starts.Load() == 1
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestTree_RestartsFailedService(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tree := NewTree(zap.New(core), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := &countingService{name: "flaky", failures: 2}
	stable := &countingService{name: "stable"}
	tree.AddMessagingService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitFor(t, func() bool { return failing.starts.Load() >= 3 })

	if stable.starts.Load() != 1 {
		t.Errorf("stable service started %d times, want 1", stable.starts.Load())
	}
	waitFor(t, func() bool { return logs.FilterMessage("Supervised service stopped").Len() >= 2 })
}

func TestTree_DoNotRestart(t *testing.T) {
	tree := NewTree(zap.NewNop(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	halted := &countingService{name: "halted", err: suture.ErrDoNotRestart}
	api := &countingService{name: "api"}
	tree.AddControlService(halted)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitFor(t, func() bool { return halted.starts.Load() == 1 && api.starts.Load() == 1 })
	time.Sleep(50 * time.Millisecond)

	if n := halted.starts.Load(); n != 1 {
		t.Errorf("service returning ErrDoNotRestart started %d times, want 1", n)
	}
}
