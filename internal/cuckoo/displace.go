package cuckoo

import (
	"math/rand"

	"github.com/pelikan-go/pelikan/internal/constants"
)

// selectVictim picks which of the four candidate cells to displace first,
// mirroring bb_cuckoo.c's _select_candidate.
func selectVictim(cand [constants.CuckooWays]int, cells []*Item, policy constants.CuckooPolicy) int {
	switch policy {
	case constants.CuckooPolicyExpire:
		selected := cand[0]
		min := cells[cand[0]].expireAt()
		for _, p := range cand[1:] {
			if cells[p].expireAt() < min {
				min = cells[p].expireAt()
				selected = p
			}
		}
		return selected
	default: // CuckooPolicyRandom
		return cand[rand.Intn(len(cand))]
	}
}

// sortCandidates orders the four candidate cells for continued
// displacement search, mirroring bb_cuckoo.c's _sort_candidate: RANDOM
// starts from a random index and proceeds linearly, EXPIRE sorts
// ascending by expiry (smallest/soonest-to-expire first).
func sortCandidates(cand [constants.CuckooWays]int, cells []*Item, policy constants.CuckooPolicy) [constants.CuckooWays]int {
	var ordered [constants.CuckooWays]int
	if policy == constants.CuckooPolicyRandom {
		j := rand.Intn(constants.CuckooWays)
		for i := 0; i < constants.CuckooWays; i++ {
			ordered[i] = cand[j]
			j = (j + 1) % constants.CuckooWays
		}
		return ordered
	}

	expire := make([]int64, constants.CuckooWays)
	for i, p := range cand {
		expire[i] = cells[p].expireAt()
		ordered[i] = p
	}
	for i := 1; i < constants.CuckooWays; i++ {
		j := i
		for j > 0 && expire[j] < expire[j-1] {
			expire[j], expire[j-1] = expire[j-1], expire[j]
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
			j--
		}
	}
	return ordered
}

// displacementResult records what the displacement search found.
type displacementResult struct {
	path    []int // path[0] is the original victim slot the new item will occupy
	evicted bool  // true if the chain exhausted CUCKOO_DISPLACE without finding an empty cell

	// reclaimedExpired is true if the chain ended by finding a cell that
	// held an already-expired item (expireAt != 0 but no longer valid),
	// as opposed to one that was pristine and never occupied.
	reclaimedExpired bool
}

// findDisplacement walks the displacement chain starting at the already
// chosen victim position, mirroring bb_cuckoo.c's cuckoo_displace. It does
// not mutate the table; callers apply the resulting path with applyPath.
func (s *Store) findDisplacement(victim int) displacementResult {
	path := []int{victim}
	ended := false
	evict := true
	reclaimedExpired := false
	step := 0

	cur := victim
	for !ended && step < constants.CuckooDisplace {
		step++
		occupant := s.cells[cur]
		cand := positions(occupant.Key(), len(s.cells))

		foundEmpty := -1
		for _, p := range cand {
			if !s.cells[p].IsValid(s.now(), s.flushBarrier) {
				foundEmpty = p
				break
			}
		}
		if foundEmpty >= 0 {
			path = append(path, foundEmpty)
			ended = true
			evict = false
			reclaimedExpired = s.cells[foundEmpty].expireAt() != 0
			break
		}

		ordered := sortCandidates(cand, s.cells, s.cfg.Policy)
		next := -1
		for _, p := range ordered {
			onPath := false
			for _, q := range path {
				if q == p {
					onPath = true
					break
				}
			}
			if !onPath {
				next = p
				break
			}
		}
		if next < 0 {
			// all candidates already on the path: no room to maneuver.
			ended = true
			break
		}
		path = append(path, next)
		cur = next
	}

	return displacementResult{path: path, evicted: evict, reclaimedExpired: reclaimedExpired}
}

// applyPath shifts occupants one step down the discovered chain (from the
// tail back toward the head) so that path[0] ends up free for the new
// item, mirroring cuckoo_displace's final copy loop. Returns the evicted
// item, if the chain ended in a forced eviction rather than an empty cell.
func (s *Store) applyPath(res displacementResult) *Item {
	path := res.path
	step := len(path) - 1

	var evicted *Item
	if res.evicted && step >= 0 {
		// The tail cell is about to be overwritten by its predecessor
		// below; snapshot its current bytes into an owned copy first,
		// since Item.raw aliases the live backing storage.
		victim := s.cells[path[step]]
		buf := make([]byte, len(victim.raw))
		copy(buf, victim.raw)
		evicted = newItem(buf, victim.hasCAS)
	}

	for i := step; i > 0; i-- {
		dst, src := s.cells[path[i]], s.cells[path[i-1]]
		copy(dst.raw, src.raw)
		dst.isInt, dst.intVal = src.isInt, src.intVal
	}

	s.cells[path[0]].clear()
	return evicted
}
