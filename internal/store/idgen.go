package store

import (
	"sync"
	"time"
)

// idGenerator hands out identifiers derived from the wall clock in
// microseconds, so ids sort roughly chronologically. The raw clock value
// alone can collide when two calls land in the same microsecond, or run
// backwards under clock skew, so the generator remembers the last id it
// issued and never repeats or decreases.
type idGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *idGenerator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := time.Now().UnixMicro()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
