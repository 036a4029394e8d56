package slab

import "github.com/pelikan-go/pelikan/internal/constants"

// Class groups all slabs that serve items of one carved cell size, per
// original_source's struct slabclass: a per-class free queue plus a
// "current slab" cursor for carving never-used cells.
type Class struct {
	id       uint8
	itemSize int // carved cell size in bytes (constants.ItemHeaderOverhead excluded: conceptual only)
	nitem    int // cells per slab for this class

	freeHead *Item // free queue head (nfree_itemq)
	nFreeQ   int

	curSlab *Slab // slab currently being carved (nil until first allocation)
	nextIdx int   // next uncarved cell index in curSlab

	slabs []*Slab // every slab ever assigned to this class, oldest first
}

// buildClasses generates the geometric size-class progression from
// minChunk up to just under slabSize, mirroring bb_slab.h's class
// generation (growth factor 1.25, matching stock memcached/Pelikan
// defaults since no profile override is configured — see DESIGN.md's
// "Open Question decisions").
func buildClasses(minChunk, slabSize int) []*Class {
	const growth = 1.25
	classes := make([]*Class, 0, constants.SlabMaxClasses)

	size := minChunk
	id := uint8(1)
	for size < slabSize && int(id) <= constants.SlabMaxClasses {
		itemSize := size
		usable := slabSize
		nitem := usable / itemSize
		classes = append(classes, &Class{id: id, itemSize: itemSize, nitem: nitem})

		next := int(float64(size) * growth)
		if next <= size {
			next = size + 1
		}
		size = next
		id++
	}
	return classes
}

// classFor returns the smallest class whose itemSize can hold klen+vlen
// (+8 if withCAS), mirroring slab_id(klen, vlen, with_cas) in spec.md
// §4.7. Returns nil if no class is large enough.
func classFor(classes []*Class, klen int, vlen uint32, withCAS bool) *Class {
	need := cellLen(klen, vlen, withCAS)
	for _, c := range classes {
		if c.itemSize >= need {
			return c
		}
	}
	return nil
}
