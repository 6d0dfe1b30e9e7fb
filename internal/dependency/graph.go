// internal/dependency/graph.go
package dependency

import "sort"

// NodeID is the unique identifier for a node inside a dependency graph.
// Registry services use their service name; units outside the registry
// (e.g. "network-online.target") use the unit name.
type NodeID string

// Node represents a service together with the ordering metadata its
// supervisor declares for it.
//
// The graph is informational only. It is never used to compute start order;
// that comes from the flat registry priority.
type Node struct {
	ID          NodeID
	Description string
	Requires    []NodeID
	Wants       []NodeID
	After       []NodeID
}

// Graph is a very small helper to answer dependency queries.  It is *not*
// thread-safe by itself; callers must synchronise if they write concurrently.
type Graph struct {
	nodes map[NodeID]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	// Copy to avoid external mutations
	copied := n
	copied.Requires = copyIDs(n.Requires)
	copied.Wants = copyIDs(n.Wants)
	copied.After = copyIDs(n.After)
	g.nodes[n.ID] = &copied
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Dependencies returns the hard (Requires) dependencies of the given node.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		return copyIDs(n.Requires)
	}
	return nil
}

// Dependents returns all node IDs that require the given node, sorted.
// This is an O(n) walk but the graph is tiny, so fine.
func (g *Graph) Dependents(id NodeID) []NodeID {
	return g.reverse(id, func(n *Node) []NodeID { return n.Requires })
}

// Wanters returns all node IDs that want (but do not require) the given
// node, sorted.
func (g *Graph) Wanters(id NodeID) []NodeID {
	return g.reverse(id, func(n *Node) []NodeID { return n.Wants })
}

func (g *Graph) reverse(id NodeID, edges func(*Node) []NodeID) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		for _, dep := range edges(n) {
			if dep == id {
				res = append(res, n.ID)
				break
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

func copyIDs(ids []NodeID) []NodeID {
	if ids == nil {
		return nil
	}
	out := make([]NodeID, len(ids))
	copy(out, ids)
	return out
}

// IDs converts plain names to node IDs.
func IDs(names []string) []NodeID {
	if len(names) == 0 {
		return nil
	}
	out := make([]NodeID, len(names))
	for i, n := range names {
		out[i] = NodeID(n)
	}
	return out
}

// Strings converts node IDs back to plain names.
func Strings(ids []NodeID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
