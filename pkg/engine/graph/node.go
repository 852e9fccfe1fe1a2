// Package graph provides dependency graph construction for module instances.
package graph

import (
	"github.com/architect-io/stackctl/pkg/engine/module"
)

// Node represents one module instance in the dependency graph.
type Node struct {
	// ID is the instance's deployment name, unique within the graph.
	ID string

	// Instance is the bound module instance this node represents.
	Instance *module.Instance

	// Definition is the module definition the instance binds.
	Definition *module.Definition

	// Decl is the instance's declaration index, used as the deterministic
	// tie-break when no ordering constraint exists between nodes.
	Decl int

	// DependsOn holds the IDs of nodes this node must deploy after.
	DependsOn []string

	// DependedOnBy holds the IDs of nodes that must deploy after this one.
	DependedOnBy []string
}

// AddDependency records a must-deploy-before edge to the given node.
// Duplicate edges are collapsed; multiplicity of references does not
// multiply edges.
func (n *Node) AddDependency(nodeID string) {
	for _, dep := range n.DependsOn {
		if dep == nodeID {
			return
		}
	}
	n.DependsOn = append(n.DependsOn, nodeID)
}

// AddDependent records the reverse direction of an edge.
func (n *Node) AddDependent(nodeID string) {
	for _, dep := range n.DependedOnBy {
		if dep == nodeID {
			return
		}
	}
	n.DependedOnBy = append(n.DependedOnBy, nodeID)
}
