package memory

import (
	"fmt"

	"github.com/markphelps/optional"
)

// Block is one contiguous region of the address space, [Start, Start+Size).
type Block struct {
	Start     int64           `json:"start"`
	Size      int64           `json:"size"`
	Allocated bool            `json:"allocated"`
	ProcessID optional.String `json:"processId"` // present iff Allocated
}

// End returns the first offset past the block.
func (b Block) End() int64 {
	return b.Start + b.Size
}

// Owner returns the owning process id, or "" for a free block.
func (b Block) Owner() string {
	return b.ProcessID.OrElse("")
}

// ownedBy reports whether the block is allocated to processID.
func (b Block) ownedBy(processID string) bool {
	if !b.Allocated {
		return false
	}
	owner, err := b.ProcessID.Get()
	return err == nil && owner == processID
}

func (b Block) String() string {
	if b.Allocated {
		return fmt.Sprintf("[%d+%d %s]", b.Start, b.Size, b.Owner())
	}
	return fmt.Sprintf("[%d+%d free]", b.Start, b.Size)
}

// freeBlock returns an unowned block.
func freeBlock(start, size int64) Block {
	return Block{Start: start, Size: size}
}
