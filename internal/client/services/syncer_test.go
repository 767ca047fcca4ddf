package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncService struct {
	SyncService

	mu       sync.Mutex
	pushes   int
	pulls    int
	dirty    int
	inFlight int
	overlap  bool

	pushErrs []error
	replaced bool
}

func (f *fakeSyncService) Push(context.Context) (int64, error) {
	f.mu.Lock()
	f.pushes++
	n := int64(f.pushes)
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	var err error
	if len(f.pushErrs) > 0 {
		err, f.pushErrs = f.pushErrs[0], f.pushErrs[1:]
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return n, err
}

func (f *fakeSyncService) Pull(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	return f.replaced, nil
}

func (f *fakeSyncService) MarkDirty(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty++
	return nil
}

func (f *fakeSyncService) snapshot() (pushes, pulls, dirty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes, f.pulls, f.dirty
}

func runSyncer(t *testing.T, s *Syncer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("syncer did not stop")
		}
	})
}

func TestSyncer_DebouncesEdits(t *testing.T) {
	svc := &fakeSyncService{}
	s := NewSyncer(svc, 30*time.Millisecond, time.Hour, nopLogger())
	runSyncer(t, s)

	for range 5 {
		s.Changed()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		p, _, _ := svc.snapshot()
		return p == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	pushes, _, dirty := svc.snapshot()
	assert.Equal(t, 1, pushes)
	assert.GreaterOrEqual(t, dirty, 1)
}

func TestSyncer_NeverOverlapsPushes(t *testing.T) {
	svc := &fakeSyncService{}
	s := NewSyncer(svc, time.Millisecond, 2*time.Millisecond, nopLogger())
	runSyncer(t, s)

	for range 20 {
		s.Changed()
		time.Sleep(2 * time.Millisecond)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.False(t, svc.overlap)
	assert.Positive(t, svc.pushes)
}

func TestSyncer_ResumePulls(t *testing.T) {
	svc := &fakeSyncService{}
	s := NewSyncer(svc, time.Hour, time.Hour, nopLogger())
	runSyncer(t, s)

	s.Resume()

	require.Eventually(t, func() bool {
		_, pulls, _ := svc.snapshot()
		return pulls == 1
	}, time.Second, 5*time.Millisecond)
	pushes, _, _ := svc.snapshot()
	assert.Zero(t, pushes)
}

func TestSyncer_RetriesFailedPushOnTick(t *testing.T) {
	svc := &fakeSyncService{pushErrs: []error{client.ErrUnavailable}}
	s := NewSyncer(svc, time.Millisecond, 20*time.Millisecond, nopLogger())
	runSyncer(t, s)

	s.Changed()

	require.Eventually(t, func() bool {
		p, _, _ := svc.snapshot()
		return p == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSyncer_NewerRemoteDropsPendingEdits(t *testing.T) {
	svc := &fakeSyncService{pushErrs: []error{errors.New("offline")}, replaced: true}
	s := NewSyncer(svc, time.Millisecond, 20*time.Millisecond, nopLogger())
	runSyncer(t, s)

	s.Changed()

	require.Eventually(t, func() bool {
		_, pulls, _ := svc.snapshot()
		return pulls >= 2
	}, time.Second, 5*time.Millisecond)
	pushes, _, _ := svc.snapshot()
	assert.Equal(t, 1, pushes)
}

func TestNewSyncer_Defaults(t *testing.T) {
	s := NewSyncer(&fakeSyncService{}, 0, 0, nopLogger())
	assert.Equal(t, DefaultPushDebounce, s.debounce)
	assert.Equal(t, DefaultPullInterval, s.pullInterval)
}
