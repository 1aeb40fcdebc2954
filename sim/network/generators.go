package network

import (
	"fmt"
	"math/rand"

	"github.com/abm-sim/abm-sim/sim"
)

// PreferentialAttachment stages a Barabási–Albert graph over nodes: the
// first m+1 nodes form a clique, then each further node attaches to m
// distinct earlier nodes chosen with probability proportional to degree.
// Edges carry weight 1. Nothing is visible until the network commits.
func PreferentialAttachment(net *Network, nodes []sim.AgentID, m int, rng *rand.Rand) error {
	if m < 1 {
		return fmt.Errorf("preferential attachment: m must be positive, got %d", m)
	}
	// each endpoint appears once per incident edge
	var endpoints []sim.AgentID
	for i, a := range nodes {
		net.AddNode(a)
		if i <= m {
			for _, b := range nodes[:i] {
				net.AddEdge(b, a, 1, "")
				endpoints = append(endpoints, a, b)
			}
			continue
		}
		chosen := make(map[sim.AgentID]struct{}, m)
		targets := make([]sim.AgentID, 0, m)
		for len(targets) < m {
			b := endpoints[rng.Intn(len(endpoints))]
			if _, dup := chosen[b]; dup {
				continue
			}
			chosen[b] = struct{}{}
			targets = append(targets, b)
		}
		for _, b := range targets {
			net.AddEdge(b, a, 1, "")
			endpoints = append(endpoints, a, b)
		}
	}
	return nil
}

// RandomEdges stages an Erdős–Rényi graph over nodes: every pair (every
// ordered pair when directed) gets an edge of weight 1 with probability p.
func RandomEdges(net *Network, nodes []sim.AgentID, p float64, rng *rand.Rand) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("random edges: p must be in [0,1], got %g", p)
	}
	for i, u := range nodes {
		net.AddNode(u)
		for j, v := range nodes {
			if i == j || (!net.directed && j < i) {
				continue
			}
			if rng.Float64() < p {
				net.AddEdge(u, v, 1, "")
			}
		}
	}
	return nil
}
