package density

// Arena is a fixed segment × bucket × event grid of runner counts, sized
// once. Each segment owns a contiguous slab so segments can be filled by
// independent workers without locking.
type Arena struct {
	segments int
	buckets  int
	events   int
	counts   []int32
}

// NewArena allocates a zeroed arena.
func NewArena(segments, buckets, events int) *Arena {
	return &Arena{
		segments: segments,
		buckets:  buckets,
		events:   events,
		counts:   make([]int32, segments*buckets*events),
	}
}

// Dims returns the arena dimensions.
func (a *Arena) Dims() (segments, buckets, events int) { return a.segments, a.buckets, a.events }

// Count returns the runners of event e on segment s during bucket b.
func (a *Arena) Count(s, b, e int) int {
	return int(a.counts[(s*a.buckets+b)*a.events+e])
}

// Stacked returns the runners of all events on segment s during bucket b.
func (a *Arena) Stacked(s, b int) int {
	row := a.counts[(s*a.buckets+b)*a.events : (s*a.buckets+b+1)*a.events]
	n := 0
	for _, c := range row {
		n += int(c)
	}
	return n
}

// slab returns segment s's counts, indexed by b*events+e.
func (a *Arena) slab(s int) []int32 {
	size := a.buckets * a.events
	return a.counts[s*size : (s+1)*size]
}
