package network

import (
	"slices"

	"github.com/abm-sim/abm-sim/sim"
)

func insertSorted[T ~uint64](ids []T, id T) []T {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

func removeSorted[T ~uint64](ids []T, id T) []T {
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return ids
	}
	return slices.Delete(ids, i, i+1)
}

// normalizeNodes sorts and deduplicates a node set.
func normalizeNodes(nodes []sim.AgentID) []sim.AgentID {
	out := slices.Clone(nodes)
	slices.Sort(out)
	return slices.Compact(out)
}
