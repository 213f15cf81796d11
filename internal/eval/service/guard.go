package service

import "sync"

// Guard is the single-flight set of submissions currently being judged. It
// guarantees at most one in-flight judge run per submission id within this
// process; nothing is coordinated across processes.
type Guard struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[int64]struct{})}
}

// Admit atomically tests membership and inserts if absent. A false return
// means the submission is already being evaluated; rejection has no side
// effects.
func (g *Guard) Admit(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[id]; ok {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

// Release removes the id unconditionally. Callers defer it so every exit
// path of an evaluation releases its slot.
func (g *Guard) Release(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}
