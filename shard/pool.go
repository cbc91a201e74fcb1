// Package shard is component D, the Shard-Table Builder (spec.md §4.D). It owns
// the shard table's CREATE TABLE DDL and the initial slot-assignment/population
// pass for each of the four structures.
package shard

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

// Pool is the per-pk rk slot pool, design-notes §9: a shuffled vector consumed
// from the end gives O(1) amortised random draw/delete instead of the source's
// quadratic materialised-list-with-remove-by-index.
//
// No pack example ships a shuffling/sampling library, so this is intentionally
// built on math/rand (see DESIGN.md).
type Pool struct {
	slots []int
}

// NewPool builds a pool of [0, maxNodes) in random order.
func NewPool(maxNodes int) *Pool {
	slots := make([]int, maxNodes)
	for i := range slots {
		slots[i] = i
	}
	rand.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	return &Pool{slots: slots}
}

// Draw removes and returns one slot from the pool. Fails with PoolExhausted
// once the pool is empty.
func (p *Pool) Draw() (int, error) {
	if len(p.slots) == 0 {
		return 0, errors.Wrap(mrverrors.PoolExhausted, "no remaining rk slots")
	}
	last := len(p.slots) - 1
	rk := p.slots[last]
	p.slots = p.slots[:last]
	return rk, nil
}

// Len reports the number of slots still available.
func (p *Pool) Len() int {
	return len(p.slots)
}
