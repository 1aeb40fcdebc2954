package network

import (
	"errors"
	"slices"
	"sync"

	"github.com/abm-sim/abm-sim/sim"
)

// ErrEmptyHyperedge is returned when a hyperedge is staged with no nodes.
var ErrEmptyHyperedge = errors.New("hyperedge needs at least one node")

// EdgeID identifies a hyperedge.
type EdgeID uint64

// Hyperedge connects a non-empty set of nodes. Nodes is sorted and free of
// duplicates.
type Hyperedge struct {
	ID     EdgeID
	Nodes  []sim.AgentID
	Weight float64
	Label  string
}

// Contains reports whether a belongs to the hyperedge.
func (h Hyperedge) Contains(a sim.AgentID) bool {
	_, found := slices.BinarySearch(h.Nodes, a)
	return found
}

type hop struct {
	kind opKind
	node sim.AgentID
	edge Hyperedge
}

// HNetwork is a double-buffered hypergraph. Edge ids are assigned when a
// hyperedge is staged, in staging order.
type HNetwork struct {
	mu     sync.Mutex
	log    []hop
	nextID EdgeID

	nodes     map[sim.AgentID]struct{}
	edges     map[EdgeID]Hyperedge
	incidence map[sim.AgentID][]EdgeID
}

// NewHNetwork creates an empty hypergraph.
func NewHNetwork() *HNetwork {
	return &HNetwork{
		nodes:     make(map[sim.AgentID]struct{}),
		edges:     make(map[EdgeID]Hyperedge),
		incidence: make(map[sim.AgentID][]EdgeID),
	}
}

func (h *HNetwork) stage(o hop) {
	h.mu.Lock()
	h.log = append(h.log, o)
	h.mu.Unlock()
}

// AddNode stages adding node a.
func (h *HNetwork) AddNode(a sim.AgentID) {
	h.stage(hop{kind: opAddNode, node: a})
}

// RemoveNode stages removing a from the graph and from every hyperedge it
// belongs to. Hyperedges left empty are dropped.
func (h *HNetwork) RemoveNode(a sim.AgentID) {
	h.stage(hop{kind: opRemoveNode, node: a})
}

// AddHyperedge stages a hyperedge over nodes and returns its id. Missing
// nodes are added.
func (h *HNetwork) AddHyperedge(nodes []sim.AgentID, weight float64, label string) (EdgeID, error) {
	if len(nodes) == 0 {
		return 0, ErrEmptyHyperedge
	}
	e := Hyperedge{Nodes: normalizeNodes(nodes), Weight: weight, Label: label}
	h.mu.Lock()
	defer h.mu.Unlock()
	e.ID = h.nextID
	h.nextID++
	h.log = append(h.log, hop{kind: opAddEdge, edge: e})
	return e.ID, nil
}

// RemoveHyperedge stages removing hyperedge id.
func (h *HNetwork) RemoveHyperedge(id EdgeID) {
	h.stage(hop{kind: opRemoveEdge, edge: Hyperedge{ID: id}})
}

// HasNode reports whether a is a committed node.
func (h *HNetwork) HasNode(a sim.AgentID) bool {
	_, ok := h.nodes[a]
	return ok
}

// EdgeCount returns the number of committed hyperedges.
func (h *HNetwork) EdgeCount() int { return len(h.edges) }

// Edge returns the committed hyperedge id.
func (h *HNetwork) Edge(id EdgeID) (Hyperedge, bool) {
	e, ok := h.edges[id]
	if !ok {
		return Hyperedge{}, false
	}
	e.Nodes = slices.Clone(e.Nodes)
	return e, true
}

// EdgesOf returns the ids of the committed hyperedges containing a, sorted.
func (h *HNetwork) EdgesOf(a sim.AgentID) []EdgeID {
	return slices.Clone(h.incidence[a])
}

// Neighbors returns every node sharing a committed hyperedge with u,
// excluding u, sorted by id.
func (h *HNetwork) Neighbors(u sim.AgentID) []sim.AgentID {
	var out []sim.AgentID
	for _, id := range h.incidence[u] {
		for _, v := range h.edges[id].Nodes {
			if v != u {
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// EdgeBetween returns the committed hyperedge with the lowest id whose node
// set is exactly nodes.
func (h *HNetwork) EdgeBetween(nodes ...sim.AgentID) (Hyperedge, bool) {
	if len(nodes) == 0 {
		return Hyperedge{}, false
	}
	want := normalizeNodes(nodes)
	for _, id := range h.incidence[want[0]] {
		if e := h.edges[id]; slices.Equal(e.Nodes, want) {
			return h.Edge(id)
		}
	}
	return Hyperedge{}, false
}

// Commit applies staged mutations in append order.
func (h *HNetwork) Commit() {
	h.mu.Lock()
	log := h.log
	h.log = nil
	h.mu.Unlock()

	for _, o := range log {
		switch o.kind {
		case opAddNode:
			h.nodes[o.node] = struct{}{}
		case opRemoveNode:
			h.dropNode(o.node)
		case opAddEdge:
			h.edges[o.edge.ID] = o.edge
			for _, a := range o.edge.Nodes {
				h.nodes[a] = struct{}{}
				h.incidence[a] = insertSorted(h.incidence[a], o.edge.ID)
			}
		case opRemoveEdge:
			h.dropEdge(o.edge.ID)
		}
	}
}

func (h *HNetwork) dropEdge(id EdgeID) {
	e, ok := h.edges[id]
	if !ok {
		return
	}
	delete(h.edges, id)
	for _, a := range e.Nodes {
		if ids := removeSorted(h.incidence[a], id); len(ids) > 0 {
			h.incidence[a] = ids
		} else {
			delete(h.incidence, a)
		}
	}
}

func (h *HNetwork) dropNode(a sim.AgentID) {
	for _, id := range slices.Clone(h.incidence[a]) {
		e := h.edges[id]
		rest := removeSorted(slices.Clone(e.Nodes), a)
		if len(rest) == 0 {
			h.dropEdge(id)
			continue
		}
		e.Nodes = rest
		h.edges[id] = e
	}
	delete(h.incidence, a)
	delete(h.nodes, a)
}
