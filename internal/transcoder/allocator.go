package transcoder

import (
	"math"

	"github.com/greatbody/bomswap/internal/errors"
)

// DefaultAllocationLimit mirrors the int-sized lengths of the platform
// conversion APIs.
const DefaultAllocationLimit = math.MaxInt32

// Allocator hands out conversion buffers. Every buffer obtained from an
// Allocator is returned to it exactly once, by the transcoder on failure or
// by the owner of a successful result through Release.
type Allocator interface {
	AllocBytes(n int) ([]byte, error)
	AllocUnits(n int) ([]uint16, error)
	FreeBytes(b []byte)
	FreeUnits(u []uint16)
}

// HeapAllocator allocates from the Go heap. Limit caps the number of
// elements a single request may ask for; zero means DefaultAllocationLimit.
type HeapAllocator struct {
	Limit int
}

func (h HeapAllocator) check(n int) error {
	limit := h.Limit
	if limit <= 0 {
		limit = DefaultAllocationLimit
	}
	if n <= 0 || n > limit {
		return errors.Allocation("Alloc", n)
	}
	return nil
}

func (h HeapAllocator) AllocBytes(n int) ([]byte, error) {
	if err := h.check(n); err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

func (h HeapAllocator) AllocUnits(n int) ([]uint16, error) {
	if err := h.check(n); err != nil {
		return nil, err
	}
	return make([]uint16, n), nil
}

// FreeBytes is a no-op; the garbage collector reclaims heap buffers.
func (HeapAllocator) FreeBytes([]byte) {}

// FreeUnits is a no-op; the garbage collector reclaims heap buffers.
func (HeapAllocator) FreeUnits([]uint16) {}
