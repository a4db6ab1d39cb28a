package rowtable

import (
	"sort"

	"github.com/gopherlabs/ptop/idmap"
)

// RowHolder is implemented by every concrete row type (Process today); it
// exposes the embedded Row so Table can manipulate shared bookkeeping
// without knowing the concrete type.
type RowHolder interface {
	RowRef() *Row
}

// indentBits is the bit width of Row.Indent minus two, mirroring htop's
// `sizeof(row->indent) * 8 - 2` clamp in Table_buildTreeBranch: Indent is
// int32, so level bits stop at bit 30 and the top bit stays free for the
// sign (the "last child" marker).
const indentBits = 30

// Table owns the rows of one kind of monitored entity, keeps an id-indexed
// lookup for O(1) re-observation, and produces a display order — flat or,
// in tree mode, a parent-first preorder walk with bit-packed indent guides.
//
// Unlike htop's Vector, Go slices don't need a soft-remove/compact dance to
// stay index-stable mid-iteration: RemoveIndex physically removes the
// element immediately, which is safe as long as callers walking rows by
// index do so back-to-front (Cleanup does exactly that, matching
// Table_cleanupEntries's reverse scan).
type Table[T RowHolder] struct {
	rows        []T
	displayList []T
	index       *idmap.IdMap[T]
	needsSort   bool

	// following is the id of a row the UI wants to keep selected across
	// rebuilds even as sort order changes; -1 means nothing is followed.
	following int
}

// New creates an empty Table sized for approximately sizeHint rows.
func New[T RowHolder](sizeHint int) *Table[T] {
	return &Table[T]{
		index:     idmap.New[T](sizeHint),
		needsSort: true,
		following: -1,
	}
}

// Add inserts a newly observed row. The caller must have set row.RowRef().Id
// to a value not already present in the table.
func (t *Table[T]) Add(row T, nowMonotonicMs uint64) {
	r := row.RowRef()
	r.SeenStampMs = nowMonotonicMs
	t.rows = append(t.rows, row)
	t.index.Put(r.Id, row)
	t.needsSort = true
}

// Find returns the row with the given id, if present.
func (t *Table[T]) Find(id int) (T, bool) {
	return t.index.Get(id)
}

// Len returns the number of rows currently held, tombed or not.
func (t *Table[T]) Len() int {
	return len(t.rows)
}

// Rows returns the underlying row slice in table (not display) order.
// Callers must not retain it across a mutating call.
func (t *Table[T]) Rows() []T {
	return t.rows
}

// DisplayList returns the most recently built presentation order. Call
// UpdateDisplayList first if rows may have changed since the last build.
func (t *Table[T]) DisplayList() []T {
	return t.displayList
}

// Following returns the id of the row currently followed, or -1.
func (t *Table[T]) Following() int {
	return t.following
}

// SetFollowing marks id as the row to keep selected across rebuilds.
func (t *Table[T]) SetFollowing(id int) {
	t.following = id
}

// ClearFollowing stops following any row.
func (t *Table[T]) ClearFollowing() {
	t.following = -1
}

// RemoveIndex removes the row at position idx from the table and its id
// index. If that row was being followed, following is cleared.
func (t *Table[T]) RemoveIndex(idx int) {
	row := t.rows[idx]
	r := row.RowRef()
	t.index.Remove(r.Id)

	if t.following == r.Id {
		t.following = -1
	}

	t.rows = append(t.rows[:idx], t.rows[idx+1:]...)
	t.needsSort = true
}

// sortKeyParent returns the key Table_buildTree sorts and bisects on: 0 for
// roots (so they always sort first and bisect as children of the
// nonexistent "pid 0"), otherwise the row's effective parent id.
func sortKeyParent(r *Row) int {
	if r.IsRoot {
		return 0
	}
	return r.EffectiveParent()
}

// buildTree is the Go counterpart of Table_buildTree: it classifies roots,
// sorts rows by (knownParent, id), then walks the tree depth-first from
// each root, filling displayList in preorder.
func (t *Table[T]) buildTree() {
	for _, row := range t.rows {
		r := row.RowRef()
		parent := r.EffectiveParent()
		r.IsRoot = false

		switch {
		case r.Id == parent:
			r.IsRoot = true
		case parent == 0:
			r.IsRoot = true
		default:
			if _, ok := t.index.Get(parent); !ok {
				// Parent not present in this table: root the subtree here.
				r.IsRoot = true
			}
		}
	}

	sort.SliceStable(t.rows, func(i, j int) bool {
		ri, rj := t.rows[i].RowRef(), t.rows[j].RowRef()
		ki, kj := sortKeyParent(ri), sortKeyParent(rj)
		if ki != kj {
			return ki < kj
		}
		return ri.Id < rj.Id
	})

	t.displayList = t.displayList[:0]
	for _, row := range t.rows {
		r := row.RowRef()
		if !r.IsRoot {
			continue
		}
		r.Indent = 0
		r.TreeDepth = 0
		t.displayList = append(t.displayList, row)
		t.buildTreeBranch(r.Id, 0, 0, r.ShowChildren)
	}

	t.needsSort = false
}

// buildTreeBranch appends rowid's children to displayList in id order,
// recursing depth-first, and fixes up each child's Indent/TreeDepth. indent
// is the bit-packed guide accumulated from ancestors; show propagates
// visibility down from a collapsed or hidden ancestor.
func (t *Table[T]) buildTreeBranch(rowid int, level uint32, indent int32, show bool) {
	// pid 0 (e.g. the kernel's "swapper" on some BSDs) is never a real
	// parent to recurse into.
	if rowid == 0 {
		return
	}

	n := len(t.rows)
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if sortKeyParent(t.rows[mid].RowRef()) < rowid {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	// Extend the range to find the last shown child, for indent purposes.
	lastShown := lo
	end := lo
	for end < n {
		r := t.rows[end].RowRef()
		if !r.IsChildOf(rowid) {
			break
		}
		if r.Show {
			lastShown = end
		}
		end++
	}

	shift := level
	if shift > indentBits {
		shift = indentBits
	}
	nextIndent := indent | (int32(1) << shift)

	for i := lo; i < end; i++ {
		row := t.rows[i]
		r := row.RowRef()

		if !show {
			r.Show = false
		}

		t.displayList = append(t.displayList, row)

		childIndent := indent
		if i < lastShown {
			childIndent = nextIndent
		}
		t.buildTreeBranch(r.Id, level+1, childIndent, r.Show && r.ShowChildren)

		if i == lastShown {
			r.Indent = -nextIndent
		} else {
			r.Indent = nextIndent
		}
		r.TreeDepth = level + 1
	}
}

// UpdateDisplayList rebuilds displayList from rows: a parent-first tree walk
// in tree mode, or a flat ascending-id order otherwise. It is a no-op
// (besides refreshing displayList's contents) when no row has been added or
// removed since the last build.
func (t *Table[T]) UpdateDisplayList(treeView bool) {
	if treeView {
		if t.needsSort {
			t.buildTree()
		}
		return
	}

	if t.needsSort {
		sort.SliceStable(t.rows, func(i, j int) bool {
			return t.rows[i].RowRef().Id < t.rows[j].RowRef().Id
		})
	}
	t.displayList = t.displayList[:0]
	t.displayList = append(t.displayList, t.rows...)
	t.needsSort = false
}

// ExpandAll sets ShowChildren on every row, so the next tree build shows
// the whole hierarchy.
func (t *Table[T]) ExpandAll() {
	for _, row := range t.rows {
		row.RowRef().ShowChildren = true
	}
}

// CollapseAll rebuilds the tree to refresh TreeDepth, then clears
// ShowChildren on every non-root row (id 1, init, is left expanded: on
// some BSDs pid 0 is the kernel and pid 1 is init, so init's TreeDepth is
// already 1, and collapsing it would hide the whole process tree).
func (t *Table[T]) CollapseAll() {
	t.buildTree()
	t.needsSort = true
	for _, row := range t.rows {
		r := row.RowRef()
		if r.TreeDepth > 0 && r.Id > 1 {
			r.ShowChildren = false
		}
	}
}

// Prepare resets per-scan bookkeeping before a sampler re-observes rows:
// Updated is cleared, WasShown captures the outgoing Show, and Show is
// optimistically set true (a live row earns it back; a vanished one will
// be caught by Cleanup).
func (t *Table[T]) Prepare() {
	for _, row := range t.rows {
		r := row.RowRef()
		r.Updated = false
		r.WasShown = r.Show
		r.Show = true
	}
}

// cleanupRow is the per-row half of Cleanup: a tombed row past its
// tombstone deadline is removed; a row the sampler didn't re-observe this
// scan is either tombed (to let the UI flash it red for a while) or removed
// immediately, depending on highlightChanges.
func (t *Table[T]) cleanupRow(idx int, nowMonotonicMs uint64, highlightChanges bool, highlightDelaySecs int) {
	row := t.rows[idx]
	r := row.RowRef()

	if r.TombStampMs > 0 {
		if nowMonotonicMs >= r.TombStampMs {
			t.RemoveIndex(idx)
		}
		return
	}

	if !r.Updated {
		if highlightChanges && r.WasShown {
			r.TombStampMs = nowMonotonicMs + uint64(highlightDelaySecs)*1000
		} else {
			t.RemoveIndex(idx)
		}
	}
}

// Cleanup walks rows back-to-front — so RemoveIndex's in-place slice
// shrink never skips an unvisited row — tombing or removing every row the
// sampler didn't touch this scan.
func (t *Table[T]) Cleanup(nowMonotonicMs uint64, highlightChanges bool, highlightDelaySecs int) {
	for i := len(t.rows) - 1; i >= 0; i-- {
		t.cleanupRow(i, nowMonotonicMs, highlightChanges, highlightDelaySecs)
	}
}
