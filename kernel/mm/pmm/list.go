package pmm

import "rvos/kernel"

// nilIndex marks the absence of a neighbor in a free-list link.
const nilIndex = int32(-1)

var errCorruptFreeList = &kernel.Error{Module: "pmm", Message: "free list corrupted"}

// listLink is the intrusive linkage embedded in every pageInfo record. The
// neighbors are stored as arena indices instead of pointers so that list
// nodes never need a separate allocation and the owning record is recovered
// by plain indexing.
type listLink struct {
	prev, next int32
}

// freeList is an intrusive doubly-linked list threading the heads of free
// blocks of a single order through the metadata arena.
type freeList struct {
	head int32
}

func (l *freeList) empty() bool {
	return l.head == nilIndex
}

// push inserts the block headed by index at the front of the list.
func (l *freeList) push(index int32) {
	link := &pages[index].link
	if link.prev != nilIndex || link.next != nilIndex || l.head == index {
		panic(errCorruptFreeList)
	}

	link.next = l.head
	if l.head != nilIndex {
		pages[l.head].link.prev = index
	}
	l.head = index
}

// pop removes and returns the block at the front of the list, or nilIndex if
// the list is empty.
func (l *freeList) pop() int32 {
	index := l.head
	if index == nilIndex {
		return nilIndex
	}

	l.remove(index)
	return index
}

// remove unlinks the block headed by index from the list.
func (l *freeList) remove(index int32) {
	link := &pages[index].link
	if link.prev == nilIndex && link.next == nilIndex && l.head != index {
		panic(errCorruptFreeList)
	}

	if link.prev != nilIndex {
		pages[link.prev].link.next = link.next
	} else {
		l.head = link.next
	}

	if link.next != nilIndex {
		pages[link.next].link.prev = link.prev
	}

	link.prev, link.next = nilIndex, nilIndex
}
