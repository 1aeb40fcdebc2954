// Package network provides double-buffered graphs over agent ids: Network
// for pairwise edges (directed or undirected) and HNetwork for hyperedges
// connecting any non-empty set of agents.
//
// Nodes live in an id-keyed arena and edges are stored as id pairs or id
// sets, never as references. Mutations are staged in a log and applied in
// append order by Commit, which also rebuilds the affected adjacency. Queries
// made during a tick therefore see the graph as of the previous commit.
package network
