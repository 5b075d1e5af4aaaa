package domain

// SeatAllocator hands out the lowest free seat numbers on a trip.
//
// It must only be used while the trip's reservation set is locked; the
// occupied set is a snapshot taken under that lock.
type SeatAllocator struct {
	capacity int
	occupied map[int]struct{}
}

// NewSeatAllocator creates an allocator for a trip with the given capacity
// and currently occupied seats.
func NewSeatAllocator(capacity int, occupied []int) *SeatAllocator {
	set := make(map[int]struct{}, len(occupied))
	for _, seat := range occupied {
		set[seat] = struct{}{}
	}
	return &SeatAllocator{capacity: capacity, occupied: set}
}

// Next returns the lowest seat in [1, capacity] not yet occupied and marks it
// occupied. The second return value is false when the trip is full.
func (a *SeatAllocator) Next() (int, bool) {
	for seat := 1; seat <= a.capacity; seat++ {
		if _, taken := a.occupied[seat]; !taken {
			a.occupied[seat] = struct{}{}
			return seat, true
		}
	}
	return 0, false
}
