package debuff

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrUnknownDebuff is returned when an id is not in the registry.
var ErrUnknownDebuff = errors.New("debuff: unknown id")

// Registry is the immutable catalog table. Build it once with NewRegistry and
// share it; nothing mutates it afterwards.
type Registry struct {
	byID  map[ID]Debuff
	order []ID
}

// NewRegistry builds the coordinate catalog: NONE plus thirteen debuffs.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[ID]Debuff)}
	for _, d := range catalog() {
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

func (r *Registry) Get(id ID) (Debuff, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// MustGet returns the debuff or the NONE debuff for an unknown id.
func (r *Registry) MustGet(id ID) Debuff {
	if d, ok := r.byID[id]; ok {
		return d
	}
	return r.byID[None]
}

// Lookup is Get with an error for unknown ids.
func (r *Registry) Lookup(id ID) (Debuff, error) {
	d, ok := r.byID[id]
	if !ok {
		return Debuff{}, fmt.Errorf("%w: %q", ErrUnknownDebuff, id)
	}
	return d, nil
}

// All returns every debuff including NONE, in catalog order.
func (r *Registry) All() []Debuff {
	out := make([]Debuff, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Pool returns the ids eligible for a random draw: everything except NONE.
func (r *Registry) Pool() []ID {
	out := make([]ID, 0, len(r.order))
	for _, id := range r.order {
		if id != None {
			out = append(out, id)
		}
	}
	return out
}

// Draw picks n distinct ids from Pool uniformly at random without
// replacement, using a partial Fisher-Yates shuffle. n is clamped to the pool
// size.
func (r *Registry) Draw(rng *rand.Rand, n int) []ID {
	pool := r.Pool()
	if n > len(pool) {
		n = len(pool)
	}
	if n < 0 {
		n = 0
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
