package shutdown

import (
	"sync"
	"testing"
	"time"
)

func TestFireIsIdempotent(t *testing.T) {
	c := NewCoordinator()

	if c.Fired() {
		t.Fatal("coordinator fired before Fire()")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Fire()
		}()
	}
	wg.Wait()

	if !c.Fired() {
		t.Fatal("coordinator did not fire")
	}

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() channel not closed after Fire()")
	}

	if c.Context().Err() == nil {
		t.Error("Context() not cancelled after Fire()")
	}
}

func TestMultipleObservers(t *testing.T) {
	c := NewCoordinator()

	const observers = 5
	got := make(chan struct{}, observers)
	for i := 0; i < observers; i++ {
		go func() {
			<-c.Done()
			got <- struct{}{}
		}()
	}

	c.Fire()

	for i := 0; i < observers; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("observer %d never saw the signal", i)
		}
	}
}
