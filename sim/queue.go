// Implements the ReadyQueue, a per-dispatch view of processes in the ready state.
// The queue is rebuilt from the process table each time the CPU is free.

package sim

import (
	"fmt"
	"strings"
)

// ReadyQueue holds the processes eligible for dispatch, in admission order until reordered.
type ReadyQueue struct {
	queue []*Process
}

// newReadyQueue collects every ready process from procs, preserving their order.
func newReadyQueue(procs []*Process) *ReadyQueue {
	rq := &ReadyQueue{}
	for _, p := range procs {
		if p.State == StateReady {
			rq.Enqueue(p)
		}
	}
	return rq
}

// Enqueue adds a process to the back of the ready queue.
func (rq *ReadyQueue) Enqueue(p *Process) {
	rq.queue = append(rq.queue, p)
}

func (rq *ReadyQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range rq.queue {
		sb.WriteString(fmt.Sprintf("%d:%s", p.ID, p.Name))
		if i < len(rq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of processes in the queue.
func (rq *ReadyQueue) Len() int {
	return len(rq.queue)
}

// Peek returns the process at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (rq *ReadyQueue) Peek() *Process {
	if len(rq.queue) == 0 {
		return nil
	}
	return rq.queue[0]
}

// Reorder applies fn to the queue contents, allowing in-place reordering.
// The ReadyOrder.OrderReady method is the primary consumer:
//
//	rq.Reorder(order.OrderReady)
//
// fn MUST NOT change the slice length (no append/delete).
func (rq *ReadyQueue) Reorder(fn func([]*Process)) {
	if fn == nil {
		panic("Reorder: fn must not be nil")
	}
	n := len(rq.queue)
	fn(rq.queue)
	if len(rq.queue) != n {
		panic(fmt.Sprintf("Reorder: fn changed queue length from %d to %d", n, len(rq.queue)))
	}
}
