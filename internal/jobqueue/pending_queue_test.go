package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingQueueOrdersByTime(t *testing.T) {
	q := newPendingQueue()
	now := time.Now()

	late := &workUnit{path: "late", nextExecutionTime: now.Add(time.Second)}
	early := &workUnit{path: "early", nextExecutionTime: now}
	mid := &workUnit{path: "mid", nextExecutionTime: now.Add(500 * time.Millisecond)}

	q.push(late)
	q.push(early)
	q.push(mid)

	assert.Equal(t, 3, q.len())
	assert.Equal(t, "early", q.pop().path)
	assert.Equal(t, "mid", q.pop().path)
	assert.Equal(t, "late", q.pop().path)
	assert.Equal(t, 0, q.len())
	assert.Nil(t, q.pop())
}

func TestPendingQueueTiebreaksByInsertionOrder(t *testing.T) {
	q := newPendingQueue()
	now := time.Now()

	first := &workUnit{path: "first", nextExecutionTime: now}
	second := &workUnit{path: "second", nextExecutionTime: now}

	q.push(first)
	q.push(second)

	assert.Equal(t, "first", q.pop().path)
	assert.Equal(t, "second", q.pop().path)
}

func TestPendingQueuePeekDoesNotRemove(t *testing.T) {
	q := newPendingQueue()
	u := &workUnit{path: "a", nextExecutionTime: time.Now()}
	q.push(u)

	assert.Same(t, u, q.peek())
	assert.Equal(t, 1, q.len())
}
