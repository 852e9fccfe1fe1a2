package graph

import (
	"fmt"
)

// Graph is a directed dependency graph of module instances. Edges point from
// consumers to the producers they must deploy after.
type Graph struct {
	// Nodes indexes every node by instance ID.
	Nodes map[string]*Node

	// order holds node IDs in declaration order.
	order []string
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
	}
}

// AddNode adds a node to the graph. Node IDs must be unique.
func (g *Graph) AddNode(node *Node) error {
	if _, exists := g.Nodes[node.ID]; exists {
		return fmt.Errorf("node %s already exists", node.ID)
	}
	node.Decl = len(g.order)
	g.Nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// GetNode returns a node by ID, or nil.
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// AddEdge adds a must-deploy-before edge from dependent to dependency.
func (g *Graph) AddEdge(dependentID, dependencyID string) error {
	dependent := g.GetNode(dependentID)
	if dependent == nil {
		return fmt.Errorf("dependent node %s not found", dependentID)
	}

	dependency := g.GetNode(dependencyID)
	if dependency == nil {
		return fmt.Errorf("dependency node %s not found", dependencyID)
	}

	dependent.AddDependency(dependencyID)
	dependency.AddDependent(dependentID)

	return nil
}

// Order returns node IDs in declaration order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}
