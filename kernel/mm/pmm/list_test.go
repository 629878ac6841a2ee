package pmm

import "testing"

func TestFreeListPushPop(t *testing.T) {
	resetAllocator()
	l := freeList{head: nilIndex}

	if !l.empty() {
		t.Fatal("expected a fresh list to be empty")
	}

	if got := l.pop(); got != nilIndex {
		t.Fatalf("expected pop on an empty list to return nilIndex; got %d", got)
	}

	for _, index := range []int32{10, 20, 30} {
		l.push(index)
	}

	// pop returns blocks in LIFO order
	for _, exp := range []int32{30, 20, 10} {
		if got := l.pop(); got != exp {
			t.Fatalf("expected pop to return %d; got %d", exp, got)
		}
	}

	if !l.empty() {
		t.Fatal("expected list to be empty after popping every block")
	}
}

func TestFreeListRemove(t *testing.T) {
	resetAllocator()
	l := freeList{head: nilIndex}

	for _, index := range []int32{10, 20, 30} {
		l.push(index)
	}

	// remove the middle entry, then the head, then the tail
	l.remove(20)
	l.remove(30)
	l.remove(10)

	if !l.empty() {
		t.Fatal("expected list to be empty after removing every block")
	}

	// removed entries get their links reset
	for _, index := range []int32{10, 20, 30} {
		if link := pages[index].link; link.prev != nilIndex || link.next != nilIndex {
			t.Errorf("expected links of removed entry %d to be reset; got %+v", index, link)
		}
	}
}

func TestFreeListCorruptionPanics(t *testing.T) {
	t.Run("double push", func(t *testing.T) {
		resetAllocator()
		l := freeList{head: nilIndex}

		l.push(10)
		expectPanic(t, errCorruptFreeList, func() { l.push(10) })
	})

	t.Run("remove of unlinked entry", func(t *testing.T) {
		resetAllocator()
		l := freeList{head: nilIndex}

		l.push(10)
		expectPanic(t, errCorruptFreeList, func() { l.remove(20) })
	})
}
