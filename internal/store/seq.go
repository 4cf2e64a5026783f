package store

import "sync"

// seqGenerator hands out notification ids, unique across users.
type seqGenerator struct {
	mu   sync.Mutex
	last int64
}

func newSeqGenerator() *seqGenerator {
	return &seqGenerator{}
}

func (g *seqGenerator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}

func (g *seqGenerator) current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// advance moves the counter forward to at least to.
func (g *seqGenerator) advance(to int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = max(g.last, to)
}
