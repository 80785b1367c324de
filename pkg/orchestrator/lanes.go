package orchestrator

import (
	"sync"
)

// lane serializes execution for one session id.
type lane struct {
	queue   []func()
	running bool
}

// laneQueue gives every session its own serial execution lane: a turn is
// read, decided, dispatched and synthesized before the next turn for that
// session may begin, while unrelated sessions proceed without contention.
type laneQueue struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

func newLaneQueue() *laneQueue {
	return &laneQueue{
		lanes: make(map[string]*lane),
	}
}

// Do runs fn serialized with all other work for the same key and blocks
// until it has executed.
func (q *laneQueue) Do(key string, fn func()) {
	done := make(chan struct{})

	q.mu.Lock()
	l, ok := q.lanes[key]
	if !ok {
		l = &lane{}
		q.lanes[key] = l
	}
	l.queue = append(l.queue, func() {
		defer close(done)
		fn()
	})
	if !l.running {
		l.running = true
		go q.drain(key, l)
	}
	q.mu.Unlock()

	<-done
}

// drain executes the lane's queued work in order, removing the lane once
// it goes idle so abandoned sessions do not leak lanes.
func (q *laneQueue) drain(key string, l *lane) {
	for {
		q.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		next := l.queue[0]
		l.queue = l.queue[1:]
		q.mu.Unlock()

		next()
	}
}

// Len returns the number of active lanes.
func (q *laneQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
