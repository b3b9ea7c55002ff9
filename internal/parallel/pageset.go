package parallel

import (
	"math/bits"
	"sync/atomic"
)

// PageSet tracks a set of 1-based page numbers using an atomic bitmap.
// It provides lock-free, thread-safe operations for concurrent access.
//
// The bitmap uses one bit per page, packed into uint64 words (64 pages per
// word). All methods are safe for concurrent use without external
// synchronization.
//
// The scheduler uses one PageSet for pages with in-flight renders (so the
// surface sweeper can protect them) and one for pages that still need a
// render pass.
type PageSet struct {
	// words is the atomic bitmap where each bit represents one page.
	// Page n maps to bit (n-1).
	words []atomic.Uint64

	// pageCount is the highest page number representable.
	pageCount int
}

// NewPageSet creates a page set for pages 1..pageCount.
// All pages start cleared. Returns nil if pageCount is not positive.
func NewPageSet(pageCount int) *PageSet {
	if pageCount <= 0 {
		return nil
	}
	return &PageSet{
		words:     make([]atomic.Uint64, (pageCount+63)/64),
		pageCount: pageCount,
	}
}

// Add marks a page as a member. Lock-free O(1) via atomic OR.
// Does nothing if the page is out of range.
func (s *PageSet) Add(page int) {
	if s == nil || page < 1 || page > s.pageCount {
		return
	}
	idx := page - 1
	s.words[idx/64].Or(1 << (idx & 63))
}

// Remove clears a page's membership. Lock-free O(1) via atomic AND.
func (s *PageSet) Remove(page int) {
	if s == nil || page < 1 || page > s.pageCount {
		return
	}
	idx := page - 1
	s.words[idx/64].And(^uint64(1 << (idx & 63)))
}

// Contains reports whether the page is a member.
func (s *PageSet) Contains(page int) bool {
	if s == nil || page < 1 || page > s.pageCount {
		return false
	}
	idx := page - 1
	return s.words[idx/64].Load()&(1<<(idx&63)) != 0
}

// Len returns the number of member pages.
// The count is a snapshot; it may be stale under concurrent mutation.
func (s *PageSet) Len() int {
	if s == nil {
		return 0
	}
	total := 0
	for i := range s.words {
		total += bits.OnesCount64(s.words[i].Load())
	}
	return total
}

// Clear removes all members.
func (s *PageSet) Clear() {
	if s == nil {
		return
	}
	for i := range s.words {
		s.words[i].Store(0)
	}
}

// PageCount returns the highest representable page number.
func (s *PageSet) PageCount() int {
	if s == nil {
		return 0
	}
	return s.pageCount
}
