package memory

import (
	"github.com/sirupsen/logrus"
)

// PlacementPolicy selects which free block satisfies an allocation.
// It is a closed set; ParsePlacementPolicy maps every input onto one of the constants.
type PlacementPolicy string

const (
	FirstFit PlacementPolicy = "FirstFit"
	BestFit  PlacementPolicy = "BestFit"
	WorstFit PlacementPolicy = "WorstFit"
)

// placementPolicyNames maps accepted names (canonical and kebab-case aliases) to policies.
var placementPolicyNames = map[string]PlacementPolicy{
	"FirstFit":  FirstFit,
	"BestFit":   BestFit,
	"WorstFit":  WorstFit,
	"first-fit": FirstFit,
	"best-fit":  BestFit,
	"worst-fit": WorstFit,
}

// IsValidPlacementPolicy returns true if name resolves to a policy without falling back.
func IsValidPlacementPolicy(name string) bool {
	_, ok := placementPolicyNames[name]
	return ok
}

// ParsePlacementPolicy resolves a policy name. Unknown or empty names fall back to FirstFit.
func ParsePlacementPolicy(name string) PlacementPolicy {
	if p, ok := placementPolicyNames[name]; ok {
		return p
	}
	if name != "" {
		logrus.Warnf("unknown allocation policy %q, falling back to %s", name, FirstFit)
	}
	return FirstFit
}

func (p PlacementPolicy) normalize() PlacementPolicy {
	switch p {
	case FirstFit, BestFit, WorstFit:
		return p
	default:
		return ParsePlacementPolicy(string(p))
	}
}

// selectBlock returns the index of the free block chosen for a request of size bytes,
// or -1 when no free block is large enough.
func selectBlock(blocks []Block, size int64, policy PlacementPolicy) int {
	switch policy {
	case BestFit:
		return bestFit(blocks, size)
	case WorstFit:
		return worstFit(blocks, size)
	default:
		return firstFit(blocks, size)
	}
}

// firstFit picks the first free block in address order that is large enough.
func firstFit(blocks []Block, size int64) int {
	for i, b := range blocks {
		if !b.Allocated && b.Size >= size {
			return i
		}
	}
	return -1
}

// bestFit picks the block leaving the smallest remainder; ties go to the lower address.
func bestFit(blocks []Block, size int64) int {
	best := -1
	var minWaste int64
	for i, b := range blocks {
		if b.Allocated || b.Size < size {
			continue
		}
		waste := b.Size - size
		if best == -1 || waste < minWaste {
			best = i
			minWaste = waste
		}
	}
	return best
}

// worstFit picks the block leaving the largest remainder; ties go to the lower address.
func worstFit(blocks []Block, size int64) int {
	worst := -1
	var maxWaste int64
	for i, b := range blocks {
		if b.Allocated || b.Size < size {
			continue
		}
		waste := b.Size - size
		if worst == -1 || waste > maxWaste {
			worst = i
			maxWaste = waste
		}
	}
	return worst
}
