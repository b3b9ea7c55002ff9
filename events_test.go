package docview

import (
	"sync"
	"testing"
)

func TestSignalSubscribeEmit(t *testing.T) {
	var s Signal[PageChangeEvent]

	var got []int
	s.Subscribe(func(e PageChangeEvent) { got = append(got, e.Page) })

	s.Emit(PageChangeEvent{Page: 1})
	s.Emit(PageChangeEvent{Page: 42})

	if len(got) != 2 || got[0] != 1 || got[1] != 42 {
		t.Errorf("received %v, want [1 42]", got)
	}
}

func TestSignalUnsubscribe(t *testing.T) {
	var s Signal[int]

	calls := 0
	cancel := s.Subscribe(func(int) { calls++ })

	s.Emit(1)
	cancel()
	s.Emit(2)
	cancel() // idempotent

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no delivery after unsubscribe)", calls)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSignalMultipleSubscribersOrder(t *testing.T) {
	var s Signal[int]

	var order []string
	s.Subscribe(func(int) { order = append(order, "a") })
	s.Subscribe(func(int) { order = append(order, "b") })
	s.Subscribe(func(int) { order = append(order, "c") })

	s.Emit(0)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("delivery order %v, want [a b c]", order)
	}
}

func TestSignalNilSubscriber(t *testing.T) {
	var s Signal[int]
	cancel := s.Subscribe(nil)
	cancel()
	s.Emit(1) // must not panic
	if s.Len() != 0 {
		t.Errorf("nil subscriber registered: Len() = %d", s.Len())
	}
}

func TestSignalConcurrent(t *testing.T) {
	var s Signal[int]
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel := s.Subscribe(func(int) {
				mu.Lock()
				total++
				mu.Unlock()
			})
			defer cancel()
			for i := 0; i < 100; i++ {
				s.Emit(i)
			}
		}()
	}
	wg.Wait()
}
