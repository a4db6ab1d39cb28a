package process

// ScanContext carries the per-tick quantities a ProcessSource needs to
// compute rate-derived fields while it refreshes rows; Machine fills this
// in once per scan from its clocks and host-wide CPU accounting.
type ScanContext struct {
	NowMonotonicMs  uint64
	PrevMonotonicMs uint64

	// CPUPeriodTicks is the host's per-CPU tick delta since the last scan
	// (the total tick delta divided by ActiveCPUs), used to normalize a process's
	// accumulated utime+stime into a percentage.
	CPUPeriodTicks float64
	ActiveCPUs     int

	HideKernelThreads   bool
	HideUserlandThreads bool

	// GPUEngineTimes accumulates per-engine GPU time (ns) across every
	// process touched this scan, mirroring LinuxMachine.gpuEngineData. Owned
	// by Machine; a Source mutates it in place rather than returning a copy.
	GPUEngineTimes map[string]uint64
}

// Source is the external ProcessSource contract of spec.md §4.7: a
// platform adapter that enumerates live processes once per scan and
// refreshes t accordingly. Implementations must always set row.Updated
// = true for every process they observe and must tolerate a process
// vanishing mid-enumeration (spec.md §7, "platform-unavailable": skip and
// let normal aging remove it).
type Source interface {
	Iterate(t *Table, sc ScanContext) error
}
