package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()

	// Pop from empty queue reports false
	if _, ok := q.Pop(); ok {
		t.Error("expected ok=false from empty queue")
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v (ok=%v)", first, ok)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_PeekDoesNotRemove(t *testing.T) {
	q := New[testItem]()

	if _, ok := q.Peek(); ok {
		t.Error("expected ok=false from empty queue")
	}

	q.Push(testItem{ID: 7})
	item, ok := q.Peek()
	if !ok || item.ID != 7 {
		t.Errorf("expected {7}, got %+v (ok=%v)", item, ok)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1 after peek, got %d", q.Len())
	}
}

func TestQueue_PopN(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	if n := q.PopN(2); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if item, _ := q.Peek(); item != 3 {
		t.Errorf("expected 3 at front, got %d", item)
	}

	// Removing more than remain removes what is there.
	if n := q.PopN(5); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if n := q.PopN(1); n != 0 {
		t.Errorf("expected 0 removed from empty queue, got %d", n)
	}
}

func TestQueue_ItemsIsACopy(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	items := q.Items()
	items[0] = 99

	if front, _ := q.Peek(); front != 1 {
		t.Errorf("mutating Items() result changed the queue: front=%d", front)
	}
}

func TestQueue_Replace(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	q.Replace([]int{9, 8})

	if q.Len() != 2 {
		t.Fatalf("expected length 2, got %d", q.Len())
	}
	if front, _ := q.Peek(); front != 9 {
		t.Errorf("expected 9 at front, got %d", front)
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	// Concurrent pushes
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	// Concurrent pops
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}
