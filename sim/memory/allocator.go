package memory

import (
	"errors"
	"fmt"
	"slices"

	"github.com/markphelps/optional"
	"github.com/sirupsen/logrus"

	"github.com/mirage-os/mirage-sim/sim/trace"
)

// DefaultTotalSize is the address-space size used when none is configured.
const DefaultTotalSize = 1024

var (
	// ErrInsufficientMemory is reported when no free block can hold the request.
	ErrInsufficientMemory = errors.New("insufficient memory")
	// ErrUnknownAllocation is reported when a process owns no block.
	ErrUnknownAllocation = errors.New("no memory allocated to process")
	// ErrInvalidSize is reported for non-positive request sizes.
	ErrInvalidSize = errors.New("invalid size")
)

// Allocation describes a granted region.
type Allocation struct {
	Start     int64  `json:"start"`
	Size      int64  `json:"size"`
	ProcessID string `json:"processId"`
}

// AllocationResult reports the outcome of Allocate.
// Err carries the sentinel for errors.Is; Message is the text relayed to clients.
type AllocationResult struct {
	Success    bool        `json:"success"`
	Allocation *Allocation `json:"allocation,omitempty"`
	Message    string      `json:"message,omitempty"`
	Err        error       `json:"-"`
}

// DeallocationResult reports the outcome of Deallocate.
type DeallocationResult struct {
	Success bool        `json:"success"`
	Freed   *Allocation `json:"freed,omitempty"`
	Message string      `json:"message,omitempty"`
	Err     error       `json:"-"`
}

// MemoryState is a copied snapshot of the allocator.
type MemoryState struct {
	TotalSize          int64           `json:"totalSize"`
	TotalAllocated     int64           `json:"totalAllocated"`
	TotalFree          int64           `json:"totalFree"`
	FragmentationCount int             `json:"fragmentationCount"` // number of free blocks
	Algorithm          PlacementPolicy `json:"algorithm"`
	Blocks             []Block         `json:"blocks"`
}

// Config groups allocator parameters for New.
type Config struct {
	TotalSize int64                  // address-space size (≤0 = DefaultTotalSize)
	Policy    PlacementPolicy        // FirstFit (default), BestFit or WorstFit
	Trace     *trace.SimulationTrace // optional decision trace (nil = disabled)
}

// Allocator is the contiguous memory allocation engine.
type Allocator struct {
	totalSize int64
	blocks    []Block // ascending, contiguous, covering [0, totalSize)
	policy    PlacementPolicy
	trace     *trace.SimulationTrace
}

// New creates an Allocator whose address space is a single free block.
func New(cfg Config) *Allocator {
	total := cfg.TotalSize
	if total <= 0 {
		total = DefaultTotalSize
	}
	return &Allocator{
		totalSize: total,
		blocks:    []Block{freeBlock(0, total)},
		policy:    cfg.Policy.normalize(),
		trace:     cfg.Trace,
	}
}

// SetAllocationAlgorithm switches the placement policy.
func (a *Allocator) SetAllocationAlgorithm(policy PlacementPolicy) {
	a.policy = policy.normalize()
	logrus.Debugf("allocation policy set to %s", a.policy)
}

// Policy returns the active placement policy.
func (a *Allocator) Policy() PlacementPolicy {
	return a.policy
}

// Allocate reserves size bytes for processID using the active placement policy.
// The chosen block is split when larger than the request. On failure the allocator is
// unchanged. Existing allocations for processID are not checked.
func (a *Allocator) Allocate(processID string, size int64) AllocationResult {
	if size <= 0 {
		return a.failAllocation(processID, size, fmt.Errorf("allocate %d for process %q: %w", size, processID, ErrInvalidSize))
	}
	idx := selectBlock(a.blocks, size, a.policy)
	if idx == -1 {
		return a.failAllocation(processID, size, fmt.Errorf("allocate %d for process %q: %w", size, processID, ErrInsufficientMemory))
	}

	chosen := a.blocks[idx]
	if chosen.Size > size {
		a.blocks = slices.Insert(a.blocks, idx+1, freeBlock(chosen.Start+size, chosen.Size-size))
	}
	a.blocks[idx] = Block{
		Start:     chosen.Start,
		Size:      size,
		Allocated: true,
		ProcessID: optional.NewString(processID),
	}

	alloc := &Allocation{Start: chosen.Start, Size: size, ProcessID: processID}
	logrus.Debugf("allocated %d at %d for process %q (%s)", size, chosen.Start, processID, a.policy)
	a.trace.RecordAllocation(trace.AllocationRecord{
		ProcessID: processID, Size: size, Start: chosen.Start, Policy: string(a.policy), Success: true,
	})
	return AllocationResult{Success: true, Allocation: alloc}
}

func (a *Allocator) failAllocation(processID string, size int64, err error) AllocationResult {
	logrus.Debugf("allocation failed: %v", err)
	a.trace.RecordAllocation(trace.AllocationRecord{
		ProcessID: processID, Size: size, Start: -1, Policy: string(a.policy), Reason: err.Error(),
	})
	return AllocationResult{Success: false, Message: err.Error(), Err: err}
}

// Deallocate frees the lowest-addressed block owned by processID and coalesces
// adjacent free blocks.
func (a *Allocator) Deallocate(processID string) DeallocationResult {
	idx := slices.IndexFunc(a.blocks, func(b Block) bool { return b.ownedBy(processID) })
	if idx == -1 {
		err := fmt.Errorf("deallocate process %q: %w", processID, ErrUnknownAllocation)
		logrus.Debugf("deallocation failed: %v", err)
		a.trace.RecordDeallocation(trace.DeallocationRecord{ProcessID: processID, Start: -1, Reason: err.Error()})
		return DeallocationResult{Success: false, Message: err.Error(), Err: err}
	}

	freed := a.blocks[idx]
	a.blocks[idx] = freeBlock(freed.Start, freed.Size)
	a.coalesce()

	logrus.Debugf("freed %d at %d from process %q", freed.Size, freed.Start, processID)
	a.trace.RecordDeallocation(trace.DeallocationRecord{ProcessID: processID, Start: freed.Start, Size: freed.Size, Success: true})
	return DeallocationResult{
		Success: true,
		Freed:   &Allocation{Start: freed.Start, Size: freed.Size, ProcessID: processID},
	}
}

// coalesce merges every run of adjacent free blocks in a single left-to-right pass.
// After a merge the same position is examined again.
func (a *Allocator) coalesce() {
	for i := 0; i < len(a.blocks)-1; {
		cur, next := a.blocks[i], a.blocks[i+1]
		if !cur.Allocated && !next.Allocated {
			a.blocks[i].Size += next.Size
			a.blocks = slices.Delete(a.blocks, i+1, i+2)
			continue
		}
		i++
	}
}

// Allocations lists the regions owned by processID in address order.
func (a *Allocator) Allocations(processID string) []Allocation {
	var out []Allocation
	for _, b := range a.blocks {
		if b.ownedBy(processID) {
			out = append(out, Allocation{Start: b.Start, Size: b.Size, ProcessID: processID})
		}
	}
	return out
}

// Reset frees the whole address space. The placement policy is kept.
func (a *Allocator) Reset() {
	a.blocks = []Block{freeBlock(0, a.totalSize)}
	logrus.Debug("allocator reset")
}

// State exports the allocator state. The snapshot shares no memory with the engine.
func (a *Allocator) State() MemoryState {
	st := MemoryState{
		TotalSize: a.totalSize,
		Algorithm: a.policy,
		Blocks:    slices.Clone(a.blocks),
	}
	for _, b := range a.blocks {
		if b.Allocated {
			st.TotalAllocated += b.Size
		} else {
			st.TotalFree += b.Size
			st.FragmentationCount++
		}
	}
	return st
}

// Validate checks the block-list invariants of a snapshot: blocks are ascending and
// contiguous from 0, sizes are positive and sum to TotalSize, no two neighbours are both
// free, and owners are present exactly on allocated blocks.
func (st MemoryState) Validate() error {
	if len(st.Blocks) == 0 {
		return fmt.Errorf("empty block list")
	}
	var next, sum int64
	for i, b := range st.Blocks {
		if b.Start != next {
			return fmt.Errorf("block %d starts at %d, want %d", i, b.Start, next)
		}
		if b.Size <= 0 {
			return fmt.Errorf("block %d has non-positive size %d", i, b.Size)
		}
		if b.Allocated != b.ProcessID.Present() {
			return fmt.Errorf("block %d: allocated=%v but owner present=%v", i, b.Allocated, b.ProcessID.Present())
		}
		if i > 0 && !b.Allocated && !st.Blocks[i-1].Allocated {
			return fmt.Errorf("blocks %d and %d are adjacent and both free", i-1, i)
		}
		next = b.End()
		sum += b.Size
	}
	if sum != st.TotalSize {
		return fmt.Errorf("block sizes sum to %d, want %d", sum, st.TotalSize)
	}
	if st.TotalAllocated+st.TotalFree != st.TotalSize {
		return fmt.Errorf("allocated %d + free %d != total %d", st.TotalAllocated, st.TotalFree, st.TotalSize)
	}
	return nil
}
