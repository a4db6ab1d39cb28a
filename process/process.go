// Package process implements the Row specialization and per-tick sampler
// for operating-system processes: the ProcessTable tree-builder, the Linux
// /proc ProcessSource, and the rate-derived metrics (CPU%, I/O bps, GPU%)
// computed from successive cumulative counters.
package process

import "github.com/gopherlabs/ptop/rowtable"

// State is a process's scheduling state, one character in /proc/<pid>/stat
// widened to a closed Go enum per spec.md's Design Notes (prefer a tagged
// sum type over the source's manual vtables where the variant set is
// fixed and small).
type State byte

const (
	StateUnknown State = iota
	StateRunning
	StateSleeping
	StateUninterruptibleWait
	StatePaging
	StateTraced
	StateStopped
	StateZombie
	StateDefunct
	StateIdle
	StateBlocked
)

// String renders the single display letter htop uses for this state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "R"
	case StateSleeping:
		return "S"
	case StateUninterruptibleWait:
		return "D"
	case StatePaging:
		return "W"
	case StateTraced:
		return "t"
	case StateStopped:
		return "T"
	case StateZombie:
		return "Z"
	case StateDefunct:
		return "X"
	case StateIdle:
		return "I"
	case StateBlocked:
		return "K"
	default:
		return "?"
	}
}

// ParseState maps a /proc/<pid>/stat state character to a State.
func ParseState(c byte) State {
	switch c {
	case 'R':
		return StateRunning
	case 'S':
		return StateSleeping
	case 'D':
		return StateUninterruptibleWait
	case 'W':
		return StatePaging
	case 't':
		return StateTraced
	case 'T':
		return StateStopped
	case 'Z':
		return StateZombie
	case 'X', 'x':
		return StateDefunct
	case 'I':
		return StateIdle
	case 'K':
		return StateBlocked
	default:
		return StateUnknown
	}
}

// Process is a Row specialization carrying everything specific to an
// operating-system process: identity, scheduling state, cumulative
// counters refreshed every scan, and the rates derived from them.
type Process struct {
	rowtable.Row

	Tgid       int
	Pgrp       int
	Session    int
	TTYNr      int
	TTYName    string
	State      State
	Priority   int64
	Nice       int64
	NumThreads int
	Processor  int

	// StartTimeSeconds holds /proc/<pid>/stat field 22 as read: the start
	// time after boot in clock ticks, not converted to seconds. Two observations of the same pid with different StartTimeSeconds
	// mean the pid was reused by an unrelated process (scenario 4).
	StartTimeSeconds uint64

	UID   uint32
	Owner string

	CgroupPath string
	CgroupName string
	Comm       string
	Cmdline    string
	ExePath    string
	Cwd        string
	OOMScore   int

	VSizeBytes uint64
	RSSBytes   uint64
	VSwapBytes uint64
	MinFault   uint64
	MajFault   uint64

	VoluntaryCtxSwitches    uint64
	NonVoluntaryCtxSwitches uint64

	// ExeDeleted and IsMemFD flag a process running from content the
	// filesystem no longer backs (package upgrade replaced its binary, or
	// it loaded straight from anonymous memory). DeletedFDCount is the
	// number of other open fds pointing at deleted files, refreshed on the
	// same throttle as the fdinfo/GPU scan.
	ExeDeleted     bool
	IsMemFD        bool
	DeletedFDCount int
	lastDeletedScanMs uint64

	// Cumulative counters, carried across scans. A sampler updates these
	// every tick; rate derivation below diffs them against the *previous*
	// values, which are kept alongside.
	UTimeTicks          uint64
	STimeTicks          uint64
	ReadBytes           uint64
	WriteBytes          uint64
	SyscR               uint64
	SyscW               uint64
	GPUTimeNs           uint64
	DelayacctBlkioTicks uint64

	// gpuActivityMs throttles fdinfo rescans: while nonzero and fresh
	// (within sampler.GPUActivityThrottleMs), the sampler skips re-reading
	// fdinfo for this process, matching GPU.c's gpu_activityMs field.
	gpuActivityMs uint64

	prevUTimeTicks          uint64
	prevSTimeTicks          uint64
	prevReadBytes           uint64
	prevWriteBytes          uint64
	prevGPUTimeNs           uint64
	prevDelayacctBlkioTicks uint64
	ioLastScanMs            uint64
	hasPriorSample          bool

	// Derived, rate-based fields. Zero until a process has survived one
	// full scan interval (first observation has no prior counters to
	// diff against).
	PercentCPU     float64
	PercentMem     float64
	IORateReadBps  float64
	IORateWriteBps float64
	GPUPercent     float64
	PercentIODelay float64
}

// RowRef implements rowtable.RowHolder.
func (p *Process) RowRef() *rowtable.Row { return &p.Row }

// New creates a Process for pid, with Id/Group both set to pid (no group
// leader indirection: threads are out of scope for this table, and every
// process is its own group unless reparented via Parent).
func New(pid int) *Process {
	p := &Process{}
	p.Id = pid
	p.Group = pid
	p.Show = true
	p.ShowChildren = true
	return p
}
