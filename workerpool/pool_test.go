package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasksInSubmitOrder(t *testing.T) {
	p := New("test", 16)
	defer p.Stop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		p.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 10)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestPoolWaitDrainsQueueBeforeReturning(t *testing.T) {
	p := New("test", 4)
	defer p.Stop()

	done := make(chan struct{})
	p.Submit(func() { time.Sleep(10 * time.Millisecond); close(done) })
	p.Wait()

	select {
	case <-done:
	default:
		t.Fatal("Wait returned before the submitted task finished")
	}
}

func TestPoolStopDrainsAlreadyQueuedTasks(t *testing.T) {
	p := New("test", 8)

	var ran int32
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		p.Submit(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.EqualValues(t, 5, ran, "Stop must drain work queued before it was called")
}
