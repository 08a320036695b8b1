package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReadyQueue_FiltersReadyProcesses(t *testing.T) {
	procs := []*Process{
		{ID: 1, State: StateTerminated},
		{ID: 2, Name: "b", State: StateReady},
		{ID: 3, State: StateRunning},
		{ID: 4, Name: "d", State: StateReady},
	}
	rq := newReadyQueue(procs)

	assert.Equal(t, 2, rq.Len())
	assert.Equal(t, int64(2), rq.Peek().ID)
	assert.Equal(t, "[2:b 4:d]", rq.String())
}

func TestReadyQueue_Peek_EmptyReturnsNil(t *testing.T) {
	rq := newReadyQueue(nil)
	assert.Nil(t, rq.Peek())
}

func TestReadyQueue_Reorder_LengthChangePanics(t *testing.T) {
	rq := &ReadyQueue{}
	rq.Enqueue(&Process{ID: 1})

	assert.Panics(t, func() {
		rq.Reorder(func(_ []*Process) {
			rq.queue = append(rq.queue, &Process{ID: 2})
		})
	})
}

func TestReadyQueue_Reorder_NilPanics(t *testing.T) {
	rq := &ReadyQueue{}
	assert.Panics(t, func() { rq.Reorder(nil) })
}
