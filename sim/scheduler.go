package sim

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// SchedulingPolicy selects how the ready pool is ordered before dispatch.
// It is a closed set; ParseSchedulingPolicy maps every input onto one of the constants.
type SchedulingPolicy string

const (
	PolicyFCFS     SchedulingPolicy = "FCFS"
	PolicySJF      SchedulingPolicy = "SJF"
	PolicyPriority SchedulingPolicy = "Priority"
	PolicyRR       SchedulingPolicy = "RR"
)

// schedulingPolicyNames maps accepted names (canonical and lower-case aliases) to policies.
var schedulingPolicyNames = map[string]SchedulingPolicy{
	"FCFS":     PolicyFCFS,
	"SJF":      PolicySJF,
	"Priority": PolicyPriority,
	"RR":       PolicyRR,
	"fcfs":     PolicyFCFS,
	"sjf":      PolicySJF,
	"priority": PolicyPriority,
	"rr":       PolicyRR,
}

// IsValidSchedulingPolicy returns true if name resolves to a policy without falling back.
func IsValidSchedulingPolicy(name string) bool {
	_, ok := schedulingPolicyNames[name]
	return ok
}

// ParseSchedulingPolicy resolves a policy name. Unknown or empty names fall back to FCFS.
func ParseSchedulingPolicy(name string) SchedulingPolicy {
	if p, ok := schedulingPolicyNames[name]; ok {
		return p
	}
	if name != "" {
		logrus.Warnf("unknown scheduling policy %q, falling back to %s", name, PolicyFCFS)
	}
	return PolicyFCFS
}

// normalize guards against values built by conversion rather than ParseSchedulingPolicy.
func (p SchedulingPolicy) normalize() SchedulingPolicy {
	switch p {
	case PolicyFCFS, PolicySJF, PolicyPriority, PolicyRR:
		return p
	default:
		return ParseSchedulingPolicy(string(p))
	}
}

// ReadyOrder reorders the ready pool before dispatch.
// The first element after ordering is the next process to run.
// Implementations sort the slice in-place using sort.SliceStable for determinism.
type ReadyOrder interface {
	OrderReady(procs []*Process)
}

// FCFSOrder sorts by arrival time (ascending), then by ID (admission order).
type FCFSOrder struct{}

func (f *FCFSOrder) OrderReady(procs []*Process) {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].ArrivalTime != procs[j].ArrivalTime {
			return procs[i].ArrivalTime < procs[j].ArrivalTime
		}
		return procs[i].ID < procs[j].ID
	})
}

// SJFOrder sorts by original burst time (ascending), then by ID.
// The ordering is recomputed over the full ready pool at every dispatch, so a short
// newcomer is chosen over an older long job the next time the CPU is free.
// Warning: SJF can starve long jobs under a steady stream of short ones.
type SJFOrder struct{}

func (s *SJFOrder) OrderReady(procs []*Process) {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].BurstTime != procs[j].BurstTime {
			return procs[i].BurstTime < procs[j].BurstTime
		}
		return procs[i].ID < procs[j].ID
	})
}

// PriorityOrder sorts by priority (descending), then by ID.
type PriorityOrder struct{}

func (p *PriorityOrder) OrderReady(procs []*Process) {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].Priority != procs[j].Priority {
			return procs[i].Priority > procs[j].Priority
		}
		return procs[i].ID < procs[j].ID
	})
}

// RoundRobinOrder serves processes in the order they entered the ready pool.
// A process preempted at quantum expiry re-enters at the back.
type RoundRobinOrder struct{}

func (r *RoundRobinOrder) OrderReady(procs []*Process) {
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].readySeq < procs[j].readySeq
	})
}

// NewReadyOrder creates the ReadyOrder for a policy.
// Policies outside the closed set are normalized to FCFS first.
func NewReadyOrder(policy SchedulingPolicy) ReadyOrder {
	switch policy.normalize() {
	case PolicySJF:
		return &SJFOrder{}
	case PolicyPriority:
		return &PriorityOrder{}
	case PolicyRR:
		return &RoundRobinOrder{}
	default:
		return &FCFSOrder{}
	}
}
