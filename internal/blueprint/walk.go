package blueprint

import (
	"errors"
	"fmt"
	"slices"
)

// SkipChildren may be returned by a Walk callback to skip the module's
// routes and error handler.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every module visited by Walk.
type WalkFunc func(m *Module) error

// Walk visits every module of flow depth-first in document order: a module
// first, then each route flow, then its error handler flow.
// Each flow is iterated over a snapshot so callbacks may insert siblings;
// inserted modules are not visited in the same walk.
func Walk(flow []*Module, fn WalkFunc) error {
	for _, m := range slices.Clone(flow) {
		err := fn(m)
		if errors.Is(err, SkipChildren) {
			continue
		}

		if err != nil {
			return err
		}

		for _, r := range m.Routes {
			err = Walk(r.Flow, fn)
			if err != nil {
				return err
			}
		}

		err = Walk(m.OnError, fn)
		if err != nil {
			return err
		}
	}

	return nil
}

// Walk visits every module of the blueprint.
func (b *Blueprint) Walk(fn WalkFunc) error {
	return Walk(b.Flow, fn)
}

// Modules returns every module in the tree in walk order.
func (b *Blueprint) Modules() []*Module {
	var out []*Module

	_ = b.Walk(func(m *Module) error {
		out = append(out, m)

		return nil
	})

	return out
}

// MaxID returns the largest module id anywhere in the tree, or 0.
func (b *Blueprint) MaxID() int {
	maxID := 0

	for _, m := range b.Modules() {
		maxID = max(maxID, m.ID)
	}

	return maxID
}

// Find returns the module with the given id, or nil.
func (b *Blueprint) Find(id int) *Module {
	slot, ok := b.Locate(id)
	if !ok {
		return nil
	}

	return (*slot.Flow)[slot.Index]
}

// Slot is the position of a module inside the flow that owns it.
type Slot struct {
	Flow  *[]*Module
	Index int
}

// Module returns the module at the slot.
func (s Slot) Module() *Module {
	return (*s.Flow)[s.Index]
}

// Siblings returns the owning flow.
func (s Slot) Siblings() []*Module {
	return *s.Flow
}

// Locate finds the flow and index holding the module with the given id.
// Positions are derived on every call, so Locate is safe after any insertion.
func (b *Blueprint) Locate(id int) (Slot, bool) {
	return locate(&b.Flow, id)
}

func locate(flow *[]*Module, id int) (Slot, bool) {
	for i, m := range *flow {
		if m.ID == id {
			return Slot{Flow: flow, Index: i}, true
		}

		for _, r := range m.Routes {
			slot, ok := locate(&r.Flow, id)
			if ok {
				return slot, true
			}
		}

		if m.OnError != nil {
			slot, ok := locate(&m.OnError, id)
			if ok {
				return slot, true
			}
		}
	}

	return Slot{}, false
}

// InsertAfter splices modules into the anchor's flow right after the anchor.
func (b *Blueprint) InsertAfter(anchorID int, mods ...*Module) error {
	slot, ok := b.Locate(anchorID)
	if !ok {
		return fmt.Errorf("insert after module %d: %w", anchorID, ErrModuleNotFound)
	}

	*slot.Flow = slices.Insert(*slot.Flow, slot.Index+1, mods...)

	return nil
}

// Prepend splices modules at the head of the top-level flow.
func (b *Blueprint) Prepend(mods ...*Module) {
	b.Flow = slices.Insert(b.Flow, 0, mods...)
}

// ErrModuleNotFound is returned when an id is not present in the tree.
var ErrModuleNotFound = errors.New("module not found")

// IDs returns every module id in walk order.
func (b *Blueprint) IDs() []int {
	mods := b.Modules()

	ids := make([]int, len(mods))
	for i, m := range mods {
		ids[i] = m.ID
	}

	return ids
}

// Allocator hands out module ids above every id present in a blueprint.
type Allocator struct {
	next int
}

// NewAllocator returns an allocator starting after the blueprint's max id.
func NewAllocator(b *Blueprint) *Allocator {
	return &Allocator{next: b.MaxID() + 1}
}

// Next returns a fresh id.
func (a *Allocator) Next() int {
	id := a.next
	a.next++

	return id
}
