package field

import (
	"slices"

	"github.com/abm-sim/abm-sim/sim"
)

// commitInverse commits a position map together with the cell -> occupants
// index derived from it. The position log is walked in append order against
// a working overlay, so an agent staged several times in one tick ends up
// in exactly one cell: the one its last write names.
func commitInverse[P comparable](positions *DBMap[sim.AgentID, P], cells *DBMap[Int2D, []sim.AgentID], cellOf func(P) Int2D) {
	entries := positions.drain()
	if len(entries) == 0 {
		return
	}

	type located struct {
		pos     P
		present bool
	}
	moved := make(map[sim.AgentID]located)
	touched := make(map[Int2D][]sim.AgentID)

	where := func(a sim.AgentID) (P, bool) {
		if l, ok := moved[a]; ok {
			return l.pos, l.present
		}
		return positions.Get(a)
	}
	occupants := func(c Int2D) []sim.AgentID {
		if ids, ok := touched[c]; ok {
			return ids
		}
		ids, _ := cells.Get(c)
		ids = slices.Clone(ids)
		touched[c] = ids
		return ids
	}

	for _, e := range entries {
		if old, ok := where(e.key); ok {
			c := cellOf(old)
			touched[c] = removeID(occupants(c), e.key)
		}
		switch e.op {
		case opInsert:
			c := cellOf(e.value)
			touched[c] = insertID(occupants(c), e.key)
			moved[e.key] = located{pos: e.value, present: true}
		case opRemove:
			moved[e.key] = located{}
		}
	}

	positions.applyAll(entries)
	for c, ids := range touched {
		if len(ids) == 0 {
			cells.Remove(c)
		} else {
			cells.Insert(c, ids)
		}
	}
	cells.Commit()
}

// insertID adds id to the sorted slice ids if absent.
func insertID(ids []sim.AgentID, id sim.AgentID) []sim.AgentID {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

// removeID deletes id from the sorted slice ids if present.
func removeID(ids []sim.AgentID, id sim.AgentID) []sim.AgentID {
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return ids
	}
	return slices.Delete(ids, i, i+1)
}
