package invoker

import "sync"

// gateSlot tracks in-flight calls for one endpoint.
type gateSlot struct {
	mu       sync.Mutex
	inFlight int
}

// concurrencyGate bounds simultaneous in-flight calls per endpoint. TryAcquire
// never blocks: a full gate is treated by the manager exactly like an
// unavailable endpoint, so per-call latency stays bounded instead of queuing
// on a saturated backend.
type concurrencyGate struct {
	limit int
	slots map[string]*gateSlot
}

func newConcurrencyGate(endpoints []EndpointConfig, limit int) *concurrencyGate {
	gate := &concurrencyGate{
		limit: limit,
		slots: make(map[string]*gateSlot, len(endpoints)),
	}
	for _, endpoint := range endpoints {
		gate.slots[endpoint.Name] = &gateSlot{}
	}
	return gate
}

// TryAcquire reserves one in-flight slot, returning false immediately when
// the endpoint is at its concurrency limit.
func (g *concurrencyGate) TryAcquire(name string) bool {
	slot := g.slots[name]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.inFlight >= g.limit {
		return false
	}
	slot.inFlight++
	return true
}

// Release returns a slot. It must run on every exit path of an attempt.
func (g *concurrencyGate) Release(name string) {
	slot := g.slots[name]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.inFlight > 0 {
		slot.inFlight--
	}
}

// InFlight reports the current in-flight count for an endpoint.
func (g *concurrencyGate) InFlight(name string) int {
	slot := g.slots[name]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.inFlight
}
