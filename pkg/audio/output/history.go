// ABOUTME: Ring of recently queued buffer sizes
// ABOUTME: Estimates how much audio is in flight between decoder and speaker
package output

// History remembers the byte sizes of the last Depth queued buffers
type History struct {
	sizes []int
	next  int
	count int
	sum   int
}

// NewHistory creates a history holding depth entries
func NewHistory(depth int) *History {
	if depth < 1 {
		depth = 1
	}
	return &History{sizes: make([]int, depth)}
}

// Push records a queued size, evicting the oldest entry when full
func (h *History) Push(size int) {
	if h.count == len(h.sizes) {
		h.sum -= h.sizes[h.next]
	} else {
		h.count++
	}
	h.sizes[h.next] = size
	h.sum += size
	h.next = (h.next + 1) % len(h.sizes)
}

// Sum returns the total of the recorded sizes
func (h *History) Sum() int {
	return h.sum
}

// Len returns the number of recorded sizes
func (h *History) Len() int {
	return h.count
}

// Depth returns the capacity of the history
func (h *History) Depth() int {
	return len(h.sizes)
}

// Reset forgets every recorded size
func (h *History) Reset() {
	for i := range h.sizes {
		h.sizes[i] = 0
	}
	h.next = 0
	h.count = 0
	h.sum = 0
}
