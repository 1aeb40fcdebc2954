package network

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/abm-sim/abm-sim/sim"
)

// Graph copies the committed view into a gonum weighted graph. Node ids are
// agent ids; self-loops are skipped since gonum simple graphs reject them.
func (n *Network) Graph() graph.Weighted {
	type builder interface {
		graph.Weighted
		AddNode(graph.Node)
		NewWeightedEdge(from, to graph.Node, weight float64) graph.WeightedEdge
		SetWeightedEdge(graph.WeightedEdge)
	}
	var g builder
	if n.directed {
		g = simple.NewWeightedDirectedGraph(0, math.Inf(1))
	} else {
		g = simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	}
	for _, a := range n.Nodes() {
		g.AddNode(simple.Node(int64(a)))
	}
	for _, e := range n.AllEdges() {
		if e.From == e.To {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(int64(e.From)), simple.Node(int64(e.To)), e.Weight))
	}
	return g
}

// ShortestPath returns the minimum-weight path from u to v over committed
// edges and its total weight. Edge weights must be non-negative.
func (n *Network) ShortestPath(u, v sim.AgentID) ([]sim.AgentID, float64, bool) {
	if !n.HasNode(u) || !n.HasNode(v) {
		return nil, math.Inf(1), false
	}
	shortest := path.DijkstraFrom(simple.Node(int64(u)), n.Graph())
	nodes, weight := shortest.To(int64(v))
	if len(nodes) == 0 {
		return nil, math.Inf(1), false
	}
	out := make([]sim.AgentID, len(nodes))
	for i, nd := range nodes {
		out[i] = sim.AgentID(nd.ID())
	}
	return out, weight, true
}

// DistancesFrom returns the minimum path weight from u to every node
// reachable over committed edges, u itself at 0. Unreachable nodes are absent.
func (n *Network) DistancesFrom(u sim.AgentID) map[sim.AgentID]float64 {
	out := make(map[sim.AgentID]float64)
	if !n.HasNode(u) {
		return out
	}
	shortest := path.DijkstraFrom(simple.Node(int64(u)), n.Graph())
	for _, a := range n.Nodes() {
		if w := shortest.WeightTo(int64(a)); !math.IsInf(w, 1) {
			out[a] = w
		}
	}
	return out
}
