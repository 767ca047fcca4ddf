package services

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/repomanager"
)

const (
	syncA   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	device1 = "11111111111111111111111111111111"
	device2 = "22222222222222222222222222222222"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// fakeClock is a settable time source shared by services under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	repos   *repomanager.InMemoryRepositoryManager
	sync    *SyncService
	shares  *ShareService
	cleanup *CleanupService
	clock   *fakeClock
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Store = config.StoreMemory

	clock := newFakeClock()
	repos := repomanager.NewInMemoryRepositoryManager()
	logger := logging.Nop()

	shares := NewShareService(repos, cfg, logger)
	shares.now = clock.Now
	syncs := NewSyncService(repos, shares, cfg, logger)
	syncs.now = clock.Now
	cleanup := NewCleanupService(repos, nil, cfg, logger)
	cleanup.now = clock.Now

	return &fixture{repos: repos, sync: syncs, shares: shares, cleanup: cleanup, clock: clock, cfg: cfg}
}

func id(c byte) string { return strings.Repeat(string(c), 32) }
