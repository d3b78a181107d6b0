// Package editor maintains an ordered sequence of content blocks with
// selection, multi-block grouping, and drag/keyboard reordering. All
// operations are total; the only reported failure is grouping a selection
// that contains a section heading.
package editor

import (
	"errors"
	"sort"

	"labdesk/api/internal/blocks"
	"labdesk/api/internal/util"
)

// ErrHeadingInSelection is reported by GroupSelection when the selection
// contains a heading2 block. State is left unchanged.
var ErrHeadingInSelection = errors.New("section headings cannot be grouped")

// Position names a boundary target for MoveSelectionTo.
type Position string

const (
	Top    Position = "top"
	Bottom Position = "bottom"
)

// Direction of a keyboard move.
type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// DropHint is the pending drop target shown during a drag.
type DropHint struct {
	Index  int
	After  bool
	Active bool
}

// Editor holds one block sequence plus interactive state. The zero value is
// usable; NewEditor seeds it from an existing sequence.
type Editor struct {
	seq       []blocks.Block
	selection []int // sorted ascending
	anchor    int   // -1 when unset
	dropHint  DropHint
}

func NewEditor(seq []blocks.Block) *Editor {
	e := &Editor{seq: append([]blocks.Block(nil), seq...), anchor: -1}
	e.normalizeGroups()
	return e
}

// Blocks returns the current sequence. Callers must not mutate the result.
func (e *Editor) Blocks() []blocks.Block { return e.seq }

// Selection returns the selected indices in ascending order.
func (e *Editor) Selection() []int { return append([]int(nil), e.selection...) }

// Anchor returns the range-selection anchor index, or -1.
func (e *Editor) Anchor() int { return e.anchor }

// Hint returns the pending drop hint.
func (e *Editor) Hint() DropHint { return e.dropHint }

func (e *Editor) Len() int { return len(e.seq) }

// Sections returns the derived section partition of the current sequence.
func (e *Editor) Sections() []blocks.Section { return blocks.Sections(e.seq) }

/* ------------------------- structural mutations ------------------------- */

// InsertAt inserts a fresh zero-value block of the given kind at index,
// clamped to the sequence bounds. Selection indices at or past the insertion
// point shift right.
func (e *Editor) InsertAt(index int, kind blocks.Kind) {
	index = clamp(index, 0, len(e.seq))
	e.seq = append(e.seq, blocks.Block{})
	copy(e.seq[index+1:], e.seq[index:])
	e.seq[index] = blocks.New(kind)
	e.shiftSelection(index, 1)
	e.normalizeGroups()
}

// InsertAfter inserts a fresh block just after index.
func (e *Editor) InsertAfter(index int, kind blocks.Kind) {
	e.InsertAt(index+1, kind)
}

// Append adds a fresh block at the end of the sequence.
func (e *Editor) Append(kind blocks.Kind) {
	e.InsertAt(len(e.seq), kind)
}

// Retype replaces the block's payload with the new kind's zero value while
// preserving its id and group membership. Retyping to heading2 drops the
// group membership, since headings are never groupable.
func (e *Editor) Retype(index int, kind blocks.Kind) {
	if index < 0 || index >= len(e.seq) {
		return
	}
	prev := e.seq[index]
	next := blocks.New(kind)
	next.ID = prev.ID
	if kind != blocks.KindHeading2 {
		next.GroupID = prev.GroupID
	}
	e.seq[index] = next
	e.normalizeGroups()
}

// Remove deletes one block and clears the selection.
func (e *Editor) Remove(index int) {
	if index < 0 || index >= len(e.seq) {
		return
	}
	e.seq = append(e.seq[:index], e.seq[index+1:]...)
	e.ClearSelection()
	e.normalizeGroups()
}

// Update replaces the block's payload with body when kinds match; a body of a
// different kind is ignored (use Retype to change kind).
func (e *Editor) Update(index int, body blocks.Body) {
	if index < 0 || index >= len(e.seq) || body == nil {
		return
	}
	if e.seq[index].Kind() != body.Kind() {
		return
	}
	e.seq[index].Body = body
}

/* ----------------------------- selection ------------------------------- */

// Select handles a plain click: a grouped block selects its whole group run
// with the anchor at the run's start; anything else selects just the index.
func (e *Editor) Select(index int) {
	if index < 0 || index >= len(e.seq) {
		return
	}
	if gid := e.seq[index].GroupID; gid != "" {
		run := e.groupRunAt(index)
		e.selection = indicesOf(run)
		e.anchor = run.Start
		return
	}
	e.selection = []int{index}
	e.anchor = index
}

// SelectRange extends the selection from the anchor to index (shift-click).
func (e *Editor) SelectRange(index int) {
	if index < 0 || index >= len(e.seq) {
		return
	}
	a := e.anchor
	if a < 0 || a >= len(e.seq) {
		a = index
	}
	lo, hi := a, index
	if lo > hi {
		lo, hi = hi, lo
	}
	e.selection = indicesOf(Run{Start: lo, End: hi})
}

// Toggle flips one index in or out of the selection (ctrl/cmd-click).
func (e *Editor) Toggle(index int) {
	if index < 0 || index >= len(e.seq) {
		return
	}
	for i, sel := range e.selection {
		if sel == index {
			e.selection = append(e.selection[:i], e.selection[i+1:]...)
			e.anchor = index
			return
		}
	}
	e.selection = append(e.selection, index)
	sort.Ints(e.selection)
	e.anchor = index
}

func (e *Editor) ClearSelection() {
	e.selection = nil
	e.anchor = -1
}

/* ------------------------------ grouping ------------------------------- */

// GroupSelection assigns a fresh shared group id to each maximal contiguous
// run within the selection. Fails without mutating when the selection
// contains a heading2 block.
func (e *Editor) GroupSelection() error {
	if len(e.selection) == 0 {
		return nil
	}
	for _, idx := range e.selection {
		if e.seq[idx].Kind() == blocks.KindHeading2 {
			return ErrHeadingInSelection
		}
	}
	for _, run := range ContiguousRuns(e.selection) {
		gid := util.NewID("grp")
		for i := run.Start; i <= run.End; i++ {
			e.seq[i].GroupID = gid
		}
	}
	return nil
}

// UngroupSelection clears group membership on every selected block and clears
// the selection.
func (e *Editor) UngroupSelection() {
	for _, idx := range e.selection {
		e.seq[idx].GroupID = ""
	}
	e.ClearSelection()
}

// groupRunAt returns the maximal contiguous run of blocks sharing index's
// group id; a lone block is its own run.
func (e *Editor) groupRunAt(index int) Run {
	gid := e.seq[index].GroupID
	if gid == "" {
		return Run{Start: index, End: index}
	}
	start, end := index, index
	for start-1 >= 0 && e.seq[start-1].GroupID == gid {
		start--
	}
	for end+1 < len(e.seq) && e.seq[end+1].GroupID == gid {
		end++
	}
	return Run{Start: start, End: end}
}

/* ------------------------------ reordering ----------------------------- */

// MoveSelectionTo relocates the selection (or, with an empty selection, the
// group run containing the anchor) as a contiguous run to the start or end of
// the sequence, preserving relative order.
func (e *Editor) MoveSelectionTo(pos Position) {
	moving := e.movingSet(e.anchor)
	if len(moving) == 0 {
		return
	}
	insertAt := 0
	if pos == Bottom {
		insertAt = len(e.seq) - len(moving)
	}
	e.relocate(moving, insertAt)
}

// MoveByKeyboard moves the selection one slot in the given direction. With no
// selection it moves the group run at index, or the lone block. No-op at
// sequence boundaries.
func (e *Editor) MoveByKeyboard(index int, dir Direction) {
	if index < 0 || index >= len(e.seq) {
		return
	}
	moving := e.selection
	if len(moving) == 0 {
		moving = indicesOf(e.groupRunAt(index))
	}
	first, last := moving[0], moving[len(moving)-1]
	if dir == Up {
		if first-1 < 0 {
			return
		}
		e.relocate(moving, first-1)
		return
	}
	if last+1 > len(e.seq)-1 {
		return
	}
	e.relocate(moving, last+1-len(moving)+1)
}

// DragStart resolves the drag set for a drag beginning at index: the current
// selection when the index is inside it, else the full group run containing
// the index, else the single index. The returned slice is the data carried by
// the drag session; DropAt accepts it back so a drop completes correctly even
// if this editor's view has since been torn down.
func (e *Editor) DragStart(index int) []int {
	if index < 0 || index >= len(e.seq) {
		return nil
	}
	for _, sel := range e.selection {
		if sel == index {
			return e.Selection()
		}
	}
	return indicesOf(e.groupRunAt(index))
}

// SetDropHint stages the visual drop target during a drag-over.
func (e *Editor) SetDropHint(index int, after bool) {
	e.dropHint = DropHint{Index: index, After: after, Active: true}
}

func (e *Editor) ClearDropHint() { e.dropHint = DropHint{} }

// DropAt relocates the drag set to just before or after the target index. A
// drop inside the drag set's own span is a no-op. The insertion offset is
// recomputed after removal so earlier removed items do not skew the target.
func (e *Editor) DropAt(drag []int, index int, after bool) {
	defer e.ClearDropHint()
	moving := validIndices(drag, len(e.seq))
	if len(moving) == 0 || index < 0 || index >= len(e.seq) {
		return
	}
	first, last := moving[0], moving[len(moving)-1]
	if (!after && index >= first && index <= last) || (after && index >= first && index < last) {
		return
	}
	to := index
	if after {
		to = index + 1
	}
	removedBefore := 0
	for _, idx := range moving {
		if idx < to {
			removedBefore++
		}
	}
	e.relocate(moving, to-removedBefore)
}

// movingSet is the selection, or the group run at fallback when empty.
func (e *Editor) movingSet(fallback int) []int {
	if len(e.selection) > 0 {
		return e.Selection()
	}
	if fallback < 0 || fallback >= len(e.seq) {
		return nil
	}
	return indicesOf(e.groupRunAt(fallback))
}

// relocate removes the blocks at the given (sorted) indices and reinserts
// them as one contiguous run at insertAt, which is an offset into the reduced
// sequence. Selection follows the moved run.
func (e *Editor) relocate(moving []int, insertAt int) {
	removed := make(map[int]bool, len(moving))
	for _, idx := range moving {
		removed[idx] = true
	}
	picked := make([]blocks.Block, 0, len(moving))
	rest := make([]blocks.Block, 0, len(e.seq)-len(moving))
	for i, b := range e.seq {
		if removed[i] {
			picked = append(picked, b)
		} else {
			rest = append(rest, b)
		}
	}
	insertAt = clamp(insertAt, 0, len(rest))

	next := make([]blocks.Block, 0, len(e.seq))
	next = append(next, rest[:insertAt]...)
	next = append(next, picked...)
	next = append(next, rest[insertAt:]...)
	e.seq = next

	e.selection = make([]int, len(picked))
	for i := range picked {
		e.selection[i] = insertAt + i
	}
	e.anchor = insertAt
	e.normalizeGroups()
}

/* ----------------------------- invariants ------------------------------ */

// normalizeGroups restores the structural invariants after a mutation: a
// heading2 never carries a group id, and blocks sharing a group id must be
// contiguous. When a group has been split, the first run keeps the id and the
// orphaned members lose it.
func (e *Editor) normalizeGroups() {
	firstRun := map[string]Run{}
	i := 0
	for i < len(e.seq) {
		if e.seq[i].Kind() == blocks.KindHeading2 {
			e.seq[i].GroupID = ""
		}
		gid := e.seq[i].GroupID
		if gid == "" {
			i++
			continue
		}
		end := i
		for end+1 < len(e.seq) && e.seq[end+1].GroupID == gid {
			end++
		}
		if _, seen := firstRun[gid]; seen {
			for j := i; j <= end; j++ {
				e.seq[j].GroupID = ""
			}
		} else {
			firstRun[gid] = Run{Start: i, End: end}
		}
		i = end + 1
	}
}

func (e *Editor) shiftSelection(from, delta int) {
	for i, sel := range e.selection {
		if sel >= from {
			e.selection[i] = sel + delta
		}
	}
	if e.anchor >= from {
		e.anchor += delta
	}
}

func indicesOf(r Run) []int {
	out := make([]int, 0, r.Len())
	for i := r.Start; i <= r.End; i++ {
		out = append(out, i)
	}
	return out
}

func validIndices(in []int, limit int) []int {
	out := make([]int, 0, len(in))
	for _, idx := range in {
		if idx >= 0 && idx < limit {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
