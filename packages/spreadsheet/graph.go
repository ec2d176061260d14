package spreadsheet

import (
	"slices"
)

// DependencyNode represents a position in the dependency graph. a node
// exists only while it has at least one edge.
type DependencyNode struct {
	// address of *THIS* node
	Pos Position

	CellPrecedents map[Position]struct{} // cells this cell depends on
	CellDependents map[Position]struct{} // cells that depend on this cell
}

// DependencyGraph holds formula edges keyed by position. every precedent
// edge has a matching dependent edge on the other end.
type DependencyGraph struct {
	nodes map[Position]*DependencyNode
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[Position]*DependencyNode),
	}
}

// getOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) getOrCreateNode(pos Position) *DependencyNode {
	if node, exists := dg.nodes[pos]; exists {
		return node
	}

	node := &DependencyNode{
		Pos:            pos,
		CellPrecedents: make(map[Position]struct{}),
		CellDependents: make(map[Position]struct{}),
	}
	dg.nodes[pos] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(pos Position) (*DependencyNode, bool) {
	node, exists := dg.nodes[pos]
	return node, exists
}

// cleanupNodeIfEmpty removes a node once it has no edges left
func (dg *DependencyGraph) cleanupNodeIfEmpty(pos Position) {
	node, exists := dg.nodes[pos]
	if !exists {
		return
	}
	if len(node.CellPrecedents) > 0 || len(node.CellDependents) > 0 {
		return
	}
	delete(dg.nodes, pos)
}

// AddCellDependency adds a cell-to-cell dependency (from depends on to)
func (dg *DependencyGraph) AddCellDependency(from, to Position) {
	fromNode := dg.getOrCreateNode(from)
	toNode := dg.getOrCreateNode(to)

	fromNode.CellPrecedents[to] = struct{}{}
	toNode.CellDependents[from] = struct{}{}
}

// RemoveCellDependency removes a cell-to-cell dependency
func (dg *DependencyGraph) RemoveCellDependency(from, to Position) bool {
	fromNode, fromExists := dg.nodes[from]
	toNode, toExists := dg.nodes[to]
	if !fromExists || !toExists {
		return false
	}

	delete(fromNode.CellPrecedents, to)
	delete(toNode.CellDependents, from)

	dg.cleanupNodeIfEmpty(from)
	dg.cleanupNodeIfEmpty(to)

	return true
}

// ClearDependencies drops every outbound edge of pos. edges pointing at pos
// from its dependents are left alone.
func (dg *DependencyGraph) ClearDependencies(pos Position) {
	node, exists := dg.nodes[pos]
	if !exists {
		return
	}

	for precedent := range node.CellPrecedents {
		dg.RemoveCellDependency(pos, precedent)
	}
}

// SetPrecedents replaces the outbound edges of pos with refs
func (dg *DependencyGraph) SetPrecedents(pos Position, refs []Position) {
	dg.ClearDependencies(pos)
	for _, ref := range refs {
		dg.AddCellDependency(pos, ref)
	}
}

// HasDependents reports whether any formula depends on pos
func (dg *DependencyGraph) HasDependents(pos Position) bool {
	node, exists := dg.nodes[pos]
	return exists && len(node.CellDependents) > 0
}

// GetDirectDependents returns the cells that depend on pos, row-major
func (dg *DependencyGraph) GetDirectDependents(pos Position) []Position {
	node, exists := dg.nodes[pos]
	if !exists {
		return nil
	}
	return sortedPositions(node.CellDependents)
}

// GetDirectPrecedents returns the cells pos directly depends on, row-major
func (dg *DependencyGraph) GetDirectPrecedents(pos Position) []Position {
	node, exists := dg.nodes[pos]
	if !exists {
		return nil
	}
	return sortedPositions(node.CellPrecedents)
}

// GetAllDependents returns all cells affected by pos (transitive closure)
func (dg *DependencyGraph) GetAllDependents(pos Position) []Position {
	visited := map[Position]struct{}{pos: {}}
	var result []Position

	stack := []Position{pos}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, exists := dg.nodes[current]
		if !exists {
			continue
		}
		for dependent := range node.CellDependents {
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}
			result = append(result, dependent)
			stack = append(stack, dependent)
		}
	}

	slices.SortFunc(result, comparePositions)
	return result
}

// WouldCreateCycle reports whether giving pos the outbound edges refs would
// close a cycle. it walks backwards over dependents starting at pos: reaching
// any member of refs means that member already depends on pos.
func (dg *DependencyGraph) WouldCreateCycle(pos Position, refs []Position) bool {
	if len(refs) == 0 {
		return false
	}

	targets := make(map[Position]struct{}, len(refs))
	for _, ref := range refs {
		targets[ref] = struct{}{}
	}
	if _, self := targets[pos]; self {
		return true
	}

	visited := map[Position]struct{}{pos: {}}
	stack := []Position{pos}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, hit := targets[current]; hit {
			return true
		}

		node, exists := dg.nodes[current]
		if !exists {
			continue
		}
		for dependent := range node.CellDependents {
			if _, seen := visited[dependent]; !seen {
				visited[dependent] = struct{}{}
				stack = append(stack, dependent)
			}
		}
	}

	return false
}

// GetCalculationOrder returns positions with precedents before dependents
// and whether a cycle was found on the way
func (dg *DependencyGraph) GetCalculationOrder() ([]Position, bool) {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[Position]bool)
	var order []Position
	hasCycle := false

	var visit func(pos Position)
	visit = func(pos Position) {
		if completed, exists := state[pos]; exists {
			if !completed {
				// currently visiting - cycle detected
				hasCycle = true
			}
			return
		}

		state[pos] = false
		if node, exists := dg.nodes[pos]; exists {
			for _, precedent := range sortedPositions(node.CellPrecedents) {
				visit(precedent)
			}
		}
		state[pos] = true
		order = append(order, pos)
	}

	for _, pos := range dg.positions() {
		visit(pos)
	}

	return order, hasCycle
}

// HasCycle checks if there are circular dependencies
func (dg *DependencyGraph) HasCycle() bool {
	_, hasCycle := dg.GetCalculationOrder()
	return hasCycle
}

// NodeCount returns how many positions currently carry edges
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

func (dg *DependencyGraph) positions() []Position {
	result := make([]Position, 0, len(dg.nodes))
	for pos := range dg.nodes {
		result = append(result, pos)
	}
	slices.SortFunc(result, comparePositions)
	return result
}

func sortedPositions(set map[Position]struct{}) []Position {
	result := make([]Position, 0, len(set))
	for pos := range set {
		result = append(result, pos)
	}
	slices.SortFunc(result, comparePositions)
	return result
}

func comparePositions(a, b Position) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
