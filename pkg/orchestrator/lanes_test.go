package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLaneQueue_SerializesSameKey(t *testing.T) {
	q := newLaneQueue()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Do("s1", func() {
				mu.Lock()
				running := len(order)
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				// No other task for the lane may have run in between
				assert.Equal(t, running, len(order))
				order = append(order, i)
				mu.Unlock()
			})
		}()
	}

	wg.Wait()
	assert.Len(t, order, 5)
}

func TestLaneQueue_DifferentKeysRunConcurrently(t *testing.T) {
	q := newLaneQueue()

	release := make(chan struct{})
	started := make(chan struct{})

	go q.Do("s1", func() {
		close(started)
		<-release
	})

	<-started

	// A different lane must not be blocked by s1's in-flight task
	done := make(chan struct{})
	go q.Do("s2", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lane s2 blocked behind lane s1")
	}

	close(release)
}

func TestLaneQueue_IdleLanesAreRemoved(t *testing.T) {
	q := newLaneQueue()

	q.Do("s1", func() {})
	q.Do("s2", func() {})

	// Do blocks until the task ran; the drain goroutine removes the lane
	// right after, so give it a moment
	assert.Eventually(t, func() bool {
		return q.Len() == 0
	}, time.Second, 10*time.Millisecond)
}
