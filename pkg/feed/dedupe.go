package feed

// dedupeRing remembers the last maxSize event ids so an event delivered
// twice (catch-up overlapping a live push, or a transport switch) is
// applied once. Not goroutine-safe; the hook owns it from one loop.
type dedupeRing struct {
	seen    map[int64]struct{}
	order   []int64
	next    int
	maxSize int
}

func newDedupeRing(maxSize int) *dedupeRing {
	if maxSize <= 0 {
		maxSize = defaultDedupeSize
	}
	return &dedupeRing{
		seen:    make(map[int64]struct{}, maxSize),
		order:   make([]int64, maxSize),
		maxSize: maxSize,
	}
}

// SeenAndRecord reports whether id was already seen and records it if
// not, evicting the oldest entry once the ring is full.
func (d *dedupeRing) SeenAndRecord(id int64) bool {
	if _, ok := d.seen[id]; ok {
		return true
	}
	if len(d.seen) >= d.maxSize {
		old := d.order[d.next]
		delete(d.seen, old)
	}
	d.order[d.next] = id
	d.next = (d.next + 1) % d.maxSize
	d.seen[id] = struct{}{}
	return false
}

// Size returns the number of remembered ids.
func (d *dedupeRing) Size() int {
	return len(d.seen)
}
