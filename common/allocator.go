// Bitmap allocator

package common

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/shadowfs"
)

// Allocator hands out blocks from a fixed pool. A set bit means the block is in
// use. The free count is kept alongside the bitmap and always equals the
// number of clear bits.
type Allocator struct {
	AllocationBitmap bitmap.Bitmap
	TotalUnits       uint
	freeUnits        uint
}

// NewAllocator creates a new allocation bitmap with all bits cleared.
func NewAllocator(totalUnits uint) *Allocator {
	return &Allocator{
		AllocationBitmap: bitmap.New(int(totalUnits)),
		TotalUnits:       totalUnits,
		freeUnits:        totalUnits,
	}
}

// NewAllocatorFromInUseBitmap creates a new allocator starting from an existing
// bitmap that indicates which units are in use. Only the first `totalUnits`
// bits are considered; the free count is recomputed from them.
func NewAllocatorFromInUseBitmap(inUseMap []byte, totalUnits uint) *Allocator {
	alloc := NewAllocator(totalUnits)
	for i := 0; i < int(totalUnits) && i < len(inUseMap)*8; i++ {
		if bitmap.Get(inUseMap, i) {
			alloc.Reserve(BlockID(i))
		}
	}
	return alloc
}

// Allocate allocates the first available unit it finds and returns its
// index. If no units are available, it returns [shadowfs.ErrNoFreeBlocks] and
// the bitmap is not modified.
func (alloc *Allocator) Allocate() (BlockID, error) {
	if alloc.freeUnits == 0 {
		return InvalidBlock, shadowfs.ErrNoFreeBlocks
	}

	for i := uint(0); i < alloc.TotalUnits; i++ {
		if !alloc.AllocationBitmap.Get(int(i)) {
			alloc.AllocationBitmap.Set(int(i), true)
			alloc.freeUnits--
			return BlockID(i), nil
		}
	}

	return InvalidBlock, shadowfs.ErrNoFreeBlocks
}

// Free releases an allocated unit. Out-of-range ids and units that are already
// free are ignored.
func (alloc *Allocator) Free(unit BlockID) {
	if !alloc.inRange(unit) || !alloc.AllocationBitmap.Get(int(unit)) {
		return
	}
	alloc.AllocationBitmap.Set(int(unit), false)
	alloc.freeUnits++
}

// Reserve marks a specific unit as in use. It's a no-op if the unit is already
// allocated.
func (alloc *Allocator) Reserve(unit BlockID) error {
	if !alloc.inRange(unit) {
		return shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"invalid unit id: %d not in range [0, %d)",
				unit,
				alloc.TotalUnits,
			),
		)
	}
	if !alloc.AllocationBitmap.Get(int(unit)) {
		alloc.AllocationBitmap.Set(int(unit), true)
		alloc.freeUnits--
	}
	return nil
}

func (alloc *Allocator) IsAllocated(unit BlockID) bool {
	return alloc.inRange(unit) && alloc.AllocationBitmap.Get(int(unit))
}

func (alloc *Allocator) FreeCount() uint {
	return alloc.freeUnits
}

func (alloc *Allocator) UsedCount() uint {
	return alloc.TotalUnits - alloc.freeUnits
}

// Bytes returns a copy of the packed bitmap, one bit per unit.
func (alloc *Allocator) Bytes() []byte {
	return alloc.AllocationBitmap.Data(true)
}

func (alloc *Allocator) inRange(unit BlockID) bool {
	return unit >= 0 && uint(unit) < alloc.TotalUnits
}
