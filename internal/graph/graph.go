package graph

import "fmt"

// Graph is a directed acyclic dependency graph keyed by canonical node IDs.
// Construction happens in a single goroutine and the graph is read-only
// afterwards, so no locking is involved.
type Graph struct {
	nodes map[string]*node
	// order records insertion order, which is declaration order for
	// template nodes. It is the deterministic tie-break for sorting.
	order []string
}

// node is a single vertex. It is un-exported to enforce interaction with
// the graph via the public API (using string IDs), not by direct struct
// manipulation.
type node struct {
	id string
	// deps holds the producers this node reads from.
	deps map[string]*node
	// dependents holds the consumers reading from this node.
	dependents map[string]*node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
}

// AddEdge records that consumerID reads from producerID. An error is
// returned if either node does not exist or if the edge would create a
// self-reference.
func (g *Graph) AddEdge(consumerID, producerID string) error {
	if consumerID == producerID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", consumerID, consumerID)
	}

	consumer, ok := g.nodes[consumerID]
	if !ok {
		return fmt.Errorf("consumer node not found: %s", consumerID)
	}
	producer, ok := g.nodes[producerID]
	if !ok {
		return fmt.Errorf("producer node not found: %s", producerID)
	}

	consumer.deps[producerID] = producer
	producer.dependents[consumerID] = consumer
	return nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dependencies returns the producer IDs the given node reads from.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	deps := make([]string, 0, len(n.deps))
	for depID := range n.deps {
		deps = append(deps, depID)
	}
	return deps, nil
}

// Dependents returns the consumer IDs reading from the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	dependents := make([]string, 0, len(n.dependents))
	for depID := range n.dependents {
		dependents = append(dependents, depID)
	}
	return dependents, nil
}

// DetectCycles checks the graph for cycles. It returns a
// *CyclicDependencyError naming a node on the first cycle found.
func (g *Graph) DetectCycles() error {
	// Classic depth-first search with three node states:
	// permanent: fully visited, known cycle-free.
	// temporary: currently on the recursion stack.
	// unvisited: everything else.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			// A node already on the recursion stack means a cycle.
			return &CyclicDependencyError{Node: n.id}
		}

		temporary[n.id] = true
		for _, dep := range n.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	// Visit in insertion order so the reported node is deterministic.
	for _, id := range g.order {
		if !permanent[id] {
			if err := visit(g.nodes[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopoSort returns all node IDs ordered producers-first. Nodes with no
// dependency relation keep their insertion (declaration) order, so the
// result is reproducible for identical input. Fails if a cycle remains.
func (g *Graph) TopoSort() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		remaining[id] = len(n.deps)
	}

	emitted := make(map[string]bool, len(g.nodes))
	out := make([]string, 0, len(g.nodes))

	for len(out) < len(g.nodes) {
		// Pick the earliest-declared node whose producers are all emitted.
		picked := ""
		for _, id := range g.order {
			if !emitted[id] && remaining[id] == 0 {
				picked = id
				break
			}
		}
		if picked == "" {
			return nil, &CyclicDependencyError{Node: firstUnemitted(g.order, emitted)}
		}

		emitted[picked] = true
		out = append(out, picked)
		for _, dependent := range g.nodes[picked].dependents {
			remaining[dependent.id]--
		}
	}

	return out, nil
}

func firstUnemitted(order []string, emitted map[string]bool) string {
	for _, id := range order {
		if !emitted[id] {
			return id
		}
	}
	return ""
}
