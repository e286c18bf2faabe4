package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/asamblea/internal/domain/model"
)

func increment(id, assembly string) Command {
	return Command{
		ID:         id,
		Kind:       KindIncrement,
		AssemblyID: assembly,
		Gender:     model.GenderWoman,
		Type:       model.TypeShort,
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}

	if !q.Enqueue(ctx, increment("c1", "a1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	c := <-q.Dequeue(ctx)
	if c.ID != "c1" || c.Kind != KindIncrement {
		t.Errorf("unexpected command %+v", c)
	}
	if c.EnqueuedAt.IsZero() {
		t.Error("expected EnqueuedAt to be stamped")
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, increment("c1", "a1")) || !q.Enqueue(ctx, increment("c2", "a1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, increment("c3", "a1")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if !q.Enqueue(ctx, increment(fmt.Sprintf("c%02d", i), "a1")) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	i := 0
	for c := range q.Dequeue(ctx) {
		if want := fmt.Sprintf("c%02d", i); c.ID != want {
			t.Fatalf("position %d: got %s want %s", i, c.ID, want)
		}
		i++
	}
	if i != 50 {
		t.Errorf("expected 50 commands, got %d", i)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const producers, perProducer = 10, 100

	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)
	out := q.Dequeue(ctx)
	go func() {
		for range out {
			consumed.Done()
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				c := increment(fmt.Sprintf("c%d_%d", p, j), fmt.Sprintf("a%d", p))
				for !q.Enqueue(ctx, c) {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		consumed.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not receive every command")
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, increment("c1", "a1")) || !q.Enqueue(ctx, increment("c2", "a1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, increment("c3", "a1")) {
		t.Error("expected enqueue to fail after closing")
	}

	// queued commands stay readable after close
	var got []string
	timeout := time.After(time.Second)
	out := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case c, ok := <-out:
			if !ok {
				done = true
				continue
			}
			got = append(got, c.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 drained commands, got %v", got)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a cancelled context still accepts while there is room; the select
	// picks either branch, so only assert the queue is not over-filled
	q.Enqueue(ctx, increment("c1", "a1"))
	if q.Enqueue(ctx, increment("c2", "a1")) {
		t.Error("expected enqueue to fail when full")
	}
	if q.Len(context.Background()) > 1 {
		t.Error("queue exceeded capacity")
	}
}
