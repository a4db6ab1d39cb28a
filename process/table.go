package process

import (
	"github.com/gopherlabs/ptop/model"
	"github.com/gopherlabs/ptop/rowtable"
	"github.com/gopherlabs/ptop/sampler"
)

// Table is the ProcessTable of spec.md §4.5: a rowtable.Table[*Process]
// plus the per-tick task counters reset in Prepare and the bookkeeping
// Cleanup performs on every surviving row once the sampler has run.
type Table struct {
	rows *rowtable.Table[*Process]

	TotalTasks      int
	RunningTasks    int
	UserlandThreads int
	KernelThreads   int

	// MaxUserID tracks the widest uid seen this scan, so the caller (the
	// Machine, or a column-width helper above it) can size the owner
	// column. Reset every Prepare, updated by Cleanup over every surviving
	// row, matching ProcessTable_cleanupEntries's maxUserId tracking.
	MaxUserID uint32
}

// NewTable creates an empty process table sized for approximately
// sizeHint processes.
func NewTable(sizeHint int) *Table {
	return &Table{rows: rowtable.New[*Process](sizeHint)}
}

// GetOrCreate returns the existing row for pid, or creates and adds a new
// one. The bool result is true when a prior row existed (the
// ProcessSource contract: only initialize immutable fields when it is
// false).
func (t *Table) GetOrCreate(pid int, nowMonotonicMs uint64) (*Process, bool) {
	if existing, ok := t.rows.Find(pid); ok {
		return existing, true
	}
	p := New(pid)
	t.rows.Add(p, nowMonotonicMs)
	return p, false
}

// Find returns the row for pid, if present.
func (t *Table) Find(pid int) (*Process, bool) {
	return t.rows.Find(pid)
}

// ReplaceForReusedPID removes any existing row for pid before the caller
// adds a fresh one, implementing scenario 4 (PID reuse detected via
// mismatched starttime): the stale row's identity must not be confused
// with the new process that inherited its pid.
func (t *Table) ReplaceForReusedPID(pid int) {
	for i, row := range t.rows.Rows() {
		if row.Id == pid {
			t.rows.RemoveIndex(i)
			return
		}
	}
}

// Len returns the number of rows, tombed or not.
func (t *Table) Len() int { return t.rows.Len() }

// Rows returns every row in table order.
func (t *Table) Rows() []*Process { return t.rows.Rows() }

// DisplayList returns the most recently built presentation order.
func (t *Table) DisplayList() []*Process { return t.rows.DisplayList() }

// UpdateDisplayList rebuilds DisplayList, as rowtable.Table.UpdateDisplayList.
func (t *Table) UpdateDisplayList(treeView bool) { t.rows.UpdateDisplayList(treeView) }

// ExpandAll and CollapseAll forward to the underlying table.
func (t *Table) ExpandAll()   { t.rows.ExpandAll() }
func (t *Table) CollapseAll() { t.rows.CollapseAll() }


// Following, SetFollowing, ClearFollowing forward to the underlying table.
func (t *Table) Following() int       { return t.rows.Following() }
func (t *Table) SetFollowing(pid int) { t.rows.SetFollowing(pid) }
func (t *Table) ClearFollowing()      { t.rows.ClearFollowing() }

// Prepare resets per-scan bookkeeping on every row and zeroes the task
// counters a ProcessSource will rebuild as it iterates.
func (t *Table) Prepare() {
	t.rows.Prepare()
	t.TotalTasks = 0
	t.RunningTasks = 0
	t.UserlandThreads = 0
	t.KernelThreads = 0
	t.MaxUserID = 0
}

// Cleanup ages out or removes rows the sampler didn't touch this scan
// (delegating to rowtable.Table.Cleanup), then, for every surviving row,
// tracks MaxUserID and finalizes the displayed command string — the two
// bits of bookkeeping ProcessTable_iterateEntries performs beyond the
// shared Table_cleanupEntries logic.
func (t *Table) Cleanup(nowMonotonicMs uint64, highlightChanges bool, highlightDelaySecs int) {
	t.rows.Cleanup(nowMonotonicMs, highlightChanges, highlightDelaySecs)

	for _, p := range t.rows.Rows() {
		if p.UID > t.MaxUserID {
			t.MaxUserID = p.UID
		}
		finalizeCommand(p)
		p.CgroupName = sampler.FilterName(p.CgroupPath)
	}
}

// finalizeCommand sets the user-facing command string: the full cmdline
// when available (a running process with readable /proc/<pid>/cmdline),
// falling back to the bracketed comm for kernel threads and zombies.
func finalizeCommand(p *Process) {
	if p.Cmdline != "" {
		return
	}
	p.Cmdline = "[" + p.Comm + "]"
}

// ToMetrics flattens every row into the flat model.ProcessMetrics slice a
// caller can render without walking the row tree itself. nowMonotonicMs and
// highlightWindowMs are used only to derive IsNew; pass the same values the
// Machine used for this scan's Cleanup.
func (t *Table) ToMetrics(nowMonotonicMs, highlightWindowMs uint64) []model.ProcessMetrics {
	rows := t.rows.Rows()
	out := make([]model.ProcessMetrics, 0, len(rows))
	for _, p := range rows {
		out = append(out, model.ProcessMetrics{
			PID:        p.Id,
			Comm:       p.Comm,
			State:      p.State.String(),
			PPID:       p.Parent,
			CgroupPath: p.CgroupPath,
			CgroupName: p.CgroupName,

			UTime:      p.UTimeTicks,
			STime:      p.STimeTicks,
			NumThreads: p.NumThreads,
			Processor:  p.Processor,

			RSS:      p.RSSBytes,
			VmSize:   p.VSizeBytes,
			VmSwap:   p.VSwapBytes,
			MinFault: p.MinFault,
			MajFault: p.MajFault,

			ReadBytes:  p.ReadBytes,
			WriteBytes: p.WriteBytes,
			SyscR:      p.SyscR,
			SyscW:      p.SyscW,

			VoluntaryCtxSwitches:    p.VoluntaryCtxSwitches,
			NonVoluntaryCtxSwitches: p.NonVoluntaryCtxSwitches,

			Tgid:     p.Tgid,
			Pgrp:     p.Pgrp,
			Session:  p.Session,
			TTYName:  p.TTYName,
			UID:      p.UID,
			Owner:    p.Owner,
			Priority: p.Priority,
			Nice:     p.Nice,

			StartTimeSeconds: p.StartTimeSeconds,
			Cmdline:          p.Cmdline,
			ExePath:          p.ExePath,
			OOMScore:         p.OOMScore,
			Cwd:              p.Cwd,

			Indent:    p.Indent,
			TreeDepth: p.TreeDepth,
			Tag:       p.Tag,
			IsNew:     p.IsNew(nowMonotonicMs, highlightWindowMs),
			IsTombed:  p.IsTombed(),

			PercentCPU:     p.PercentCPU,
			PercentMem:     p.PercentMem,
			IORateReadBps:  p.IORateReadBps,
			IORateWriteBps: p.IORateWriteBps,

			GPUTimeNs:  p.GPUTimeNs,
			GPUPercent: p.GPUPercent,

			DelayacctBlkioTicks: p.DelayacctBlkioTicks,
			PercentIODelay:      p.PercentIODelay,

			ExeDeleted:     p.ExeDeleted,
			IsMemFD:        p.IsMemFD,
			DeletedFDCount: p.DeletedFDCount,
		})
	}
	return out
}
