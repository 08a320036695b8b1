// Package memory implements the contiguous memory allocator for mirage-sim.
//
// The address space is an ordered list of blocks covering [0, totalSize). Allocation picks a
// free block with the active placement policy (first, best or worst fit) and splits off the
// unused remainder; deallocation frees a block and coalesces adjacent free blocks so that no
// two neighbours are ever both free.
//
// The Allocator is not safe for concurrent use; callers serialize access.
package memory
