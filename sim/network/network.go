package network

import (
	"slices"
	"sync"

	"github.com/abm-sim/abm-sim/sim"
)

// Edge is a committed pairwise edge. In undirected networks From <= To.
type Edge struct {
	From   sim.AgentID
	To     sim.AgentID
	Weight float64
	Label  string
}

// Other returns the endpoint of e that is not a.
func (e Edge) Other(a sim.AgentID) sim.AgentID {
	if e.From == a {
		return e.To
	}
	return e.From
}

type pair struct {
	u, v sim.AgentID
}

type opKind uint8

const (
	opAddNode opKind = iota
	opRemoveNode
	opAddEdge
	opRemoveEdge
)

type op struct {
	kind opKind
	edge Edge
}

// Network is a double-buffered graph with pairwise edges. Directedness is
// fixed at construction.
//
// Reads may run concurrently with each other and with staging calls. Commit
// must run alone.
type Network struct {
	directed bool

	mu  sync.Mutex
	log []op

	nodes map[sim.AgentID]struct{}
	edges map[pair]Edge
	out   map[sim.AgentID][]sim.AgentID // successors (all neighbours when undirected)
	in    map[sim.AgentID][]sim.AgentID // predecessors; directed only
}

// NewNetwork creates an empty network.
func NewNetwork(directed bool) *Network {
	return &Network{
		directed: directed,
		nodes:    make(map[sim.AgentID]struct{}),
		edges:    make(map[pair]Edge),
		out:      make(map[sim.AgentID][]sim.AgentID),
		in:       make(map[sim.AgentID][]sim.AgentID),
	}
}

func (n *Network) Directed() bool { return n.directed }

func (n *Network) key(u, v sim.AgentID) pair {
	if !n.directed && v < u {
		u, v = v, u
	}
	return pair{u: u, v: v}
}

func (n *Network) stage(o op) {
	n.mu.Lock()
	n.log = append(n.log, o)
	n.mu.Unlock()
}

// AddNode stages adding node a.
func (n *Network) AddNode(a sim.AgentID) {
	n.stage(op{kind: opAddNode, edge: Edge{From: a}})
}

// RemoveNode stages removing node a with every edge incident to it.
func (n *Network) RemoveNode(a sim.AgentID) {
	n.stage(op{kind: opRemoveNode, edge: Edge{From: a}})
}

// AddEdge stages an edge u -> v, replacing any existing edge between them.
// Missing endpoints are added as nodes.
func (n *Network) AddEdge(u, v sim.AgentID, weight float64, label string) {
	k := n.key(u, v)
	n.stage(op{kind: opAddEdge, edge: Edge{From: k.u, To: k.v, Weight: weight, Label: label}})
}

// RemoveEdge stages removing the edge u -> v.
func (n *Network) RemoveEdge(u, v sim.AgentID) {
	k := n.key(u, v)
	n.stage(op{kind: opRemoveEdge, edge: Edge{From: k.u, To: k.v}})
}

// Pending returns the number of staged mutations.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.log)
}

// HasNode reports whether a is a committed node.
func (n *Network) HasNode(a sim.AgentID) bool {
	_, ok := n.nodes[a]
	return ok
}

// Nodes returns the committed nodes sorted by id.
func (n *Network) Nodes() []sim.AgentID {
	out := make([]sim.AgentID, 0, len(n.nodes))
	for a := range n.nodes {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// NodeCount returns the number of committed nodes.
func (n *Network) NodeCount() int { return len(n.nodes) }

// EdgeCount returns the number of committed edges.
func (n *Network) EdgeCount() int { return len(n.edges) }

// Neighbors returns the successors of u (all adjacent nodes when
// undirected), sorted by id.
func (n *Network) Neighbors(u sim.AgentID) []sim.AgentID {
	return slices.Clone(n.out[u])
}

// Predecessors returns the nodes with an edge into u, sorted by id. For
// undirected networks it equals Neighbors.
func (n *Network) Predecessors(u sim.AgentID) []sim.AgentID {
	if !n.directed {
		return n.Neighbors(u)
	}
	return slices.Clone(n.in[u])
}

// Degree returns the committed out-degree of u.
func (n *Network) Degree(u sim.AgentID) int { return len(n.out[u]) }

// EdgeBetween returns the committed edge u -> v. Undirected networks
// resolve both argument orders to the same edge.
func (n *Network) EdgeBetween(u, v sim.AgentID) (Edge, bool) {
	e, ok := n.edges[n.key(u, v)]
	return e, ok
}

// Edges returns the committed edges leaving u (incident to u when
// undirected), ordered by the other endpoint.
func (n *Network) Edges(u sim.AgentID) []Edge {
	adj := n.out[u]
	out := make([]Edge, 0, len(adj))
	for _, v := range adj {
		out = append(out, n.edges[n.key(u, v)])
	}
	return out
}

// AllEdges returns every committed edge ordered by (From, To).
func (n *Network) AllEdges() []Edge {
	out := make([]Edge, 0, len(n.edges))
	for _, e := range n.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if a.From != b.From {
			if a.From < b.From {
				return -1
			}
			return 1
		}
		if a.To < b.To {
			return -1
		}
		if a.To > b.To {
			return 1
		}
		return 0
	})
	return out
}

// Commit applies staged mutations in append order.
func (n *Network) Commit() {
	n.mu.Lock()
	log := n.log
	n.log = nil
	n.mu.Unlock()

	for _, o := range log {
		switch o.kind {
		case opAddNode:
			n.nodes[o.edge.From] = struct{}{}
		case opRemoveNode:
			n.dropNode(o.edge.From)
		case opAddEdge:
			n.nodes[o.edge.From] = struct{}{}
			n.nodes[o.edge.To] = struct{}{}
			n.link(o.edge)
		case opRemoveEdge:
			n.unlink(pair{u: o.edge.From, v: o.edge.To})
		}
	}
}

func (n *Network) link(e Edge) {
	k := pair{u: e.From, v: e.To}
	n.edges[k] = e
	n.out[e.From] = insertSorted(n.out[e.From], e.To)
	if n.directed {
		n.in[e.To] = insertSorted(n.in[e.To], e.From)
	} else {
		n.out[e.To] = insertSorted(n.out[e.To], e.From)
	}
}

func (n *Network) unlink(k pair) {
	if _, ok := n.edges[k]; !ok {
		return
	}
	delete(n.edges, k)
	trim(n.out, k.u, k.v)
	if n.directed {
		trim(n.in, k.v, k.u)
	} else {
		trim(n.out, k.v, k.u)
	}
}

func (n *Network) dropNode(a sim.AgentID) {
	if _, ok := n.nodes[a]; !ok {
		return
	}
	for _, v := range slices.Clone(n.out[a]) {
		n.unlink(n.key(a, v))
	}
	if n.directed {
		for _, u := range slices.Clone(n.in[a]) {
			n.unlink(pair{u: u, v: a})
		}
	}
	delete(n.nodes, a)
	delete(n.out, a)
	delete(n.in, a)
}

// trim removes id from adj[key], dropping the key once its list is empty.
func trim(adj map[sim.AgentID][]sim.AgentID, key, id sim.AgentID) {
	ids := removeSorted(adj[key], id)
	if len(ids) == 0 {
		delete(adj, key)
		return
	}
	adj[key] = ids
}
