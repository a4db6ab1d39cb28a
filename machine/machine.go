// Package machine implements the per-tick orchestrator of spec.md §4.6: it
// owns the process table, the shared UserCache and TtyResolver, and the
// clocks every rate-derived metric is computed from. The outer loop calls
// Scan once per tick; nothing inside Scan suspends, matching the
// single-threaded cooperative model spec.md §5 requires.
package machine

import (
	"fmt"
	"time"

	"github.com/gopherlabs/ptop/model"
	"github.com/gopherlabs/ptop/process"
	"github.com/gopherlabs/ptop/ttyresolve"
	"github.com/gopherlabs/ptop/usercache"
	"github.com/gopherlabs/ptop/util"
)

// Machine owns one ProcessTable and the clocks/caches it needs to drive a
// scan. Column-width trackers (PidDigits, UidDigits) and GPU per-engine
// totals live here rather than as package-global state, per spec.md's
// Design Notes instruction to hoist the C original's globals onto Machine.
type Machine struct {
	Processes *process.Table
	Users     *usercache.Cache
	TTYs      *ttyresolve.Resolver

	source process.Source

	// Filters applied by the ProcessSource during iterate.
	HideKernelThreads   bool
	HideUserlandThreads bool

	// Highlighting policy, threaded through to Table.Cleanup every scan.
	HighlightChanges   bool
	HighlightDelaySecs int

	TreeView bool

	// Column-width trackers, reset and recomputed every scan
	// (Row_setPidColumnWidth / Row_setUidColumnWidth in the original).
	PidDigits int
	UidDigits int

	// GPUEngineTimes holds, for the latest scan, the drm-engine-*-ns totals
	// summed across all processes, keyed by engine name, per spec.md §4.7's
	// "also into per-engine totals on the Machine". Cleared at each Scan.
	GPUEngineTimes map[string]uint64

	ActiveCPUs   int
	ExistingCPUs int

	Realtime    time.Time
	RealtimeMs  uint64
	MonotonicMs uint64

	prevMonotonicMs uint64
	firstScanDone   bool

	prevCPUTotal uint64
}

// New creates a Machine wired to the real Linux /proc filesystem, with a
// fresh UserCache and a TtyResolver loaded from /proc/tty/drivers.
func New() *Machine {
	users := usercache.New()
	ttys := ttyresolve.Load()
	return newWithSource(users, ttys, process.NewLinuxSource(users, ttys))
}

// newWithSource builds a Machine around an explicit ProcessSource, letting
// tests substitute a fixture source without touching the real procfs.
func newWithSource(users *usercache.Cache, ttys *ttyresolve.Resolver, src process.Source) *Machine {
	return &Machine{
		Processes:          process.NewTable(256),
		Users:              users,
		TTYs:               ttys,
		source:             src,
		HighlightDelaySecs: 2,
		ActiveCPUs:         1,
		GPUEngineTimes:     make(map[string]uint64),
	}
}

// Scan performs one prepare -> iterate -> cleanup cycle and refreshes the
// host-wide aggregates Scan needs for rate formulas. now is the wall-clock
// reading the caller took for this tick (normally time.Now()); cpu is this
// tick's already-collected /proc/stat aggregate, supplied by the caller so
// Scan doesn't duplicate that read. mem is this tick's /proc/meminfo
// snapshot, used only to compute percent_mem.
//
// Scan is the sole mutator of the Machine and its Tables; nothing it calls
// blocks on anything but procfs reads, so it never suspends mid-scan.
func (m *Machine) Scan(now time.Time, cpu model.CPUMetrics, mem model.MemoryMetrics) error {
	var elapsedMs uint64
	if m.firstScanDone {
		if d := now.Sub(m.Realtime); d > 0 {
			elapsedMs = uint64(d.Milliseconds())
		}
	}

	m.Realtime = now
	m.RealtimeMs = uint64(now.UnixMilli())
	m.prevMonotonicMs = m.MonotonicMs
	m.MonotonicMs += elapsedMs

	activeCPUs := cpu.NumCPUs
	if activeCPUs <= 0 {
		activeCPUs = 1
	}
	m.ActiveCPUs = activeCPUs
	m.ExistingCPUs = activeCPUs

	var periodTicks float64
	if m.firstScanDone {
		periodTicks = float64(util.Delta(m.prevCPUTotal, cpu.Total.Total())) / float64(activeCPUs)
	}
	m.prevCPUTotal = cpu.Total.Total()

	clear(m.GPUEngineTimes)
	sc := process.ScanContext{
		NowMonotonicMs:      m.MonotonicMs,
		PrevMonotonicMs:     m.prevMonotonicMs,
		CPUPeriodTicks:      periodTicks,
		ActiveCPUs:          activeCPUs,
		HideKernelThreads:   m.HideKernelThreads,
		HideUserlandThreads: m.HideUserlandThreads,
		GPUEngineTimes:      m.GPUEngineTimes,
	}

	m.Processes.Prepare()
	if err := m.source.Iterate(m.Processes, sc); err != nil {
		// Cannot read /proc at all: spec.md §7 fatal case, propagate.
		return fmt.Errorf("machine: scan process table: %w", err)
	}
	m.Processes.Cleanup(m.MonotonicMs, m.HighlightChanges, m.HighlightDelaySecs)

	m.applyMemoryPercent(mem.Total)
	m.updateColumnWidths()
	m.firstScanDone = true

	return nil
}

// applyMemoryPercent fills in percent_mem for every surviving row, clamped
// to [0, 100] per spec.md §4.1's rate-derived-field table. Table.Cleanup
// cannot do this itself: it has no notion of total system memory, which is
// a host-wide aggregate Machine alone knows about.
func (m *Machine) applyMemoryPercent(totalMemBytes uint64) {
	if totalMemBytes == 0 {
		return
	}
	for _, p := range m.Processes.Rows() {
		pct := 100 * float64(p.RSSBytes) / float64(totalMemBytes)
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		p.PercentMem = pct
	}
}

// updateColumnWidths recomputes PidDigits/UidDigits from this scan's
// surviving rows, replacing the C original's Row_pidDigits/Row_uidDigits
// global state (spec.md Design Notes: "Turn each into fields of Machine").
func (m *Machine) updateColumnWidths() {
	pidDigits := 1
	uidDigits := 1
	for _, p := range m.Processes.Rows() {
		if d := digitsOf(uint64(p.Id)); d > pidDigits {
			pidDigits = d
		}
		if d := digitsOf(uint64(p.UID)); d > uidDigits {
			uidDigits = d
		}
	}
	m.PidDigits = pidDigits
	m.UidDigits = uidDigits
}

func digitsOf(v uint64) int {
	n := 1
	for v >= 10 {
		v /= 10
		n++
	}
	return n
}

// UpdateDisplayList rebuilds the process table's presentation order in the
// Machine's current tree/flat mode.
func (m *Machine) UpdateDisplayList() {
	m.Processes.UpdateDisplayList(m.TreeView)
}

// ToMetrics flattens the process table into the flat ProcessMetrics DTO.
func (m *Machine) ToMetrics() []model.ProcessMetrics {
	return m.Processes.ToMetrics(m.MonotonicMs, uint64(1000*m.HighlightDelaySecs))
}
