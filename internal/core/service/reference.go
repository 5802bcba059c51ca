package service

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// ReferenceGenerator draws human-readable payment references such as
// LB-4821. Four digits leave 9000 values, so callers must cope with a clash.
type ReferenceGenerator struct {
	prefix string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewReferenceGenerator(prefix string) *ReferenceGenerator {
	return NewReferenceGeneratorWithSource(prefix, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func NewReferenceGeneratorWithSource(prefix string, src rand.Source) *ReferenceGenerator {
	return &ReferenceGenerator{prefix: prefix, rng: rand.New(src)}
}

func (g *ReferenceGenerator) Next() string {
	g.mu.Lock()
	n := 1000 + g.rng.IntN(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%d", g.prefix, n)
}
