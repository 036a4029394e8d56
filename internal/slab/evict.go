package slab

import (
	"math/rand"

	"github.com/pelikan-go/pelikan/internal/constants"
)

// pickVictim selects a slab of class c to evict under the given policy,
// mirroring spec.md §4.7 step 5 ("NONE returns ENOMEM; RS picks a random
// existing slab of this class; CS picks the least-recently-created
// slab of this class"). Returns nil if the class owns no slabs yet.
func pickVictim(c *Class, policy constants.EvictPolicy) *Slab {
	if len(c.slabs) == 0 {
		return nil
	}
	switch policy {
	case constants.EvictRandomSlab:
		return c.slabs[rand.Intn(len(c.slabs))]
	case constants.EvictLeastRecentlyCreated:
		oldest := c.slabs[0]
		for _, s := range c.slabs[1:] {
			if s.utime < oldest.utime {
				oldest = s
			}
		}
		return oldest
	default:
		return nil
	}
}
