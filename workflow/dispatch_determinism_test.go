package workflow

import (
	"sync"
	"testing"
)

// NOTE: These tests are intentionally DB-free. They validate the dispatcher's
// intended semantics:
// - at-least-once delivery is safe via durable idempotency
// - per-tenant serialization prevents racey interleavings inside handlers
//
// Full DB integration tests live in the models package behind INTEGRATION_TESTS=1.

type fakeProcessor struct {
	muByTenant map[string]*sync.Mutex
	mu         sync.Mutex
	seen       map[string]bool
	calls      int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		muByTenant: map[string]*sync.Mutex{},
		seen:       map[string]bool{},
	}
}

func (p *fakeProcessor) process(userID, handlerName, messageID string, fn func()) {
	// Serialize per tenant (models AcquireTenantPostingLock).
	p.mu.Lock()
	tm := p.muByTenant[userID]
	if tm == nil {
		tm = &sync.Mutex{}
		p.muByTenant[userID] = tm
	}
	p.mu.Unlock()

	tm.Lock()
	defer tm.Unlock()

	// Deduplicate (models IdempotencyKey).
	key := userID + "|" + handlerName + "|" + messageID
	p.mu.Lock()
	if p.seen[key] {
		p.mu.Unlock()
		return
	}
	p.seen[key] = true
	p.mu.Unlock()

	fn()

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func TestDuplicateDeliveryIsProcessedOnce(t *testing.T) {
	p := newFakeProcessor()

	const (
		tenant    = "user-1"
		handler   = "SL"
		messageID = "123"
	)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.process(tenant, handler, messageID, func() {})
		}()
	}
	wg.Wait()

	if p.calls != 1 {
		t.Fatalf("expected exactly 1 processing call, got %d", p.calls)
	}
}

func TestDeterministicUnderConcurrency(t *testing.T) {
	for run := 0; run < 100; run++ {
		p := newFakeProcessor()
		var wg sync.WaitGroup

		// same scenario, repeated concurrently
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p.process("user-1", "SL", "1", func() {})
				p.process("user-1", "EX", "2", func() {})
				p.process("user-1", "SL", "1", func() {}) // duplicate
			}(i)
		}
		wg.Wait()

		if p.calls != 2 {
			t.Fatalf("run=%d expected 2 unique calls (SL#1, EX#2), got %d", run, p.calls)
		}
	}
}
