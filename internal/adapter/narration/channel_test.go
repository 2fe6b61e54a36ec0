package narration

import (
	"fmt"
	"sync"
	"testing"
)

func TestChannel_FIFO(t *testing.T) {
	ch := NewChannel(0)
	for i := 0; i < 3; i++ {
		ch.Push(fmt.Sprintf("m%d", i))
	}

	for i := 0; i < 3; i++ {
		got, ok := ch.TryPop()
		if !ok {
			t.Fatalf("expected line %d", i)
		}
		if want := fmt.Sprintf("m%d", i); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if _, ok := ch.TryPop(); ok {
		t.Error("expected empty channel")
	}
}

func TestChannel_Drain(t *testing.T) {
	ch := NewChannel(0)
	ch.Push("a")
	ch.Push("b")

	if n := ch.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if ch.Len() != 0 {
		t.Errorf("expected empty channel after drain, got %d", ch.Len())
	}
	select {
	case <-ch.Ready():
		t.Error("ready signal should be cleared by drain")
	default:
	}
}

func TestChannel_BacklogLimitEvictsOldest(t *testing.T) {
	ch := NewChannel(2)
	if ch.Push("a") || ch.Push("b") {
		t.Fatal("no eviction expected below the limit")
	}
	if !ch.Push("c") {
		t.Fatal("expected eviction at the limit")
	}

	first, _ := ch.TryPop()
	second, _ := ch.TryPop()
	if first != "b" || second != "c" {
		t.Errorf("got %q, %q; want b, c", first, second)
	}
}

func TestChannel_ReadySignal(t *testing.T) {
	ch := NewChannel(0)
	ch.Push("a")
	ch.Push("b")

	select {
	case <-ch.Ready():
	default:
		t.Fatal("expected ready signal after push")
	}
}

func TestChannel_ConcurrentProducers(t *testing.T) {
	ch := NewChannel(0)
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ch.Push(fmt.Sprintf("%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	// Each producer's lines must come out in the order it pushed them.
	next := make(map[string]int)
	for {
		line, ok := ch.TryPop()
		if !ok {
			break
		}
		var p, i int
		if _, err := fmt.Sscanf(line, "%d-%d", &p, &i); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		key := fmt.Sprint(p)
		if i != next[key] {
			t.Fatalf("producer %d: got %d, want %d", p, i, next[key])
		}
		next[key]++
	}
	for p := 0; p < producers; p++ {
		if next[fmt.Sprint(p)] != perProducer {
			t.Errorf("producer %d: got %d lines, want %d", p, next[fmt.Sprint(p)], perProducer)
		}
	}
}
