package store

import (
	"sync"
	"testing"
)

func TestQueue_PushDrainOrder(t *testing.T) {
	q := newQueue[int](4)

	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	got := q.Drain(0)
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Drain() returned %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if q.Drain(0) != nil {
		t.Error("Drain() on empty queue should return nil")
	}
}

func TestQueue_DrainMax(t *testing.T) {
	q := newQueue[int](4)
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	first := q.Drain(3)
	if len(first) != 3 || first[0] != 1 || first[2] != 3 {
		t.Errorf("Drain(3) = %v, want [1 2 3]", first)
	}

	rest := q.Drain(3)
	if len(rest) != 2 || rest[0] != 4 || rest[1] != 5 {
		t.Errorf("Drain(3) = %v, want [4 5]", rest)
	}
}

func TestQueue_RequeuePrepends(t *testing.T) {
	q := newQueue[int](4)
	for i := 1; i <= 4; i++ {
		q.Push(i)
	}

	batch := q.Drain(2) // [1 2]
	q.Push(5)

	// A failed batch goes back to the front, ahead of newer work.
	q.Requeue(batch)

	got := q.Drain(0)
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Drain() returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestQueue_RequeueGrows(t *testing.T) {
	q := newQueue[int](2)
	q.Push(10)
	q.Push(11)

	q.Requeue([]int{7, 8, 9})

	got := q.Drain(0)
	want := []int{7, 8, 9, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("Drain() returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestQueue_ClosedRejectsPush(t *testing.T) {
	q := newQueue[int](2)
	q.Push(1)
	q.Close()

	if q.Push(2) {
		t.Error("Push after Close should return false")
	}
	q.Requeue([]int{3})

	got := q.Drain(0)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Drain() = %v, want [1]", got)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := newQueue[int](1)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	if q.Len() != 800 {
		t.Errorf("Len() = %d, want 800", q.Len())
	}
	if got := q.Drain(0); len(got) != 800 {
		t.Errorf("Drain() returned %d items, want 800", len(got))
	}
}
