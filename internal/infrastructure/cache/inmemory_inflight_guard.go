package cache

import (
	"context"
	"sync"
	"time"

	"github.com/consulta/backend/internal/domain/shared"
)

// slot represents a claimed key with expiration
type slot struct {
	expiresAt time.Time
}

// InMemoryInflightGuard implements InflightGuard using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryInflightGuard struct {
	mu        sync.Mutex
	slots     map[string]slot
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryInflightGuard creates a new in-memory in-flight guard.
// It starts a background goroutine to clean up expired slots.
func NewInMemoryInflightGuard() *InMemoryInflightGuard {
	guard := &InMemoryInflightGuard{
		slots:    make(map[string]slot),
		stopChan: make(chan struct{}),
	}

	guard.wg.Add(1)
	go guard.cleanupLoop()

	return guard
}

// Acquire attempts to claim the key.
// Returns true if the key was newly claimed, false if still held.
func (g *InMemoryInflightGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, exists := g.slots[key]; exists {
		if time.Now().Before(s.expiresAt) {
			return false, nil // Still in flight
		}
		// Slot exists but expired, will be overwritten
	}

	g.slots[key] = slot{
		expiresAt: time.Now().Add(ttl),
	}

	return true, nil
}

// Release frees the key
func (g *InMemoryInflightGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.slots, key)
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (g *InMemoryInflightGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired slots
func (g *InMemoryInflightGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

// cleanup removes expired slots
func (g *InMemoryInflightGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, s := range g.slots {
		if now.After(s.expiresAt) {
			delete(g.slots, key)
		}
	}
}

// Size returns the number of held slots (for testing/monitoring)
func (g *InMemoryInflightGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// Ensure InMemoryInflightGuard implements InflightGuard
var _ shared.InflightGuard = (*InMemoryInflightGuard)(nil)
