package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func p(address string) Position {
	return ParsePosition(address)
}

func TestDependencyGraphEdges(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddCellDependency(p("B1"), p("A1"))
	dg.AddCellDependency(p("C1"), p("A1"))

	assert.True(t, dg.HasDependents(p("A1")))
	assert.False(t, dg.HasDependents(p("B1")))
	assert.Equal(t, []Position{p("B1"), p("C1")}, dg.GetDirectDependents(p("A1")))
	assert.Equal(t, []Position{p("A1")}, dg.GetDirectPrecedents(p("B1")))
	assert.Equal(t, 3, dg.NodeCount())

	assert.True(t, dg.RemoveCellDependency(p("B1"), p("A1")))
	assert.False(t, dg.RemoveCellDependency(p("B1"), p("A1")))
	assert.Equal(t, 2, dg.NodeCount(), "B1 has no edges left")

	dg.ClearDependencies(p("C1"))
	assert.Equal(t, 0, dg.NodeCount())
}

func TestDependencyGraphSetPrecedents(t *testing.T) {
	dg := NewDependencyGraph()
	dg.SetPrecedents(p("C1"), []Position{p("A1"), p("B1")})
	dg.SetPrecedents(p("C1"), []Position{p("B1"), p("D1")})

	assert.Equal(t, []Position{p("B1"), p("D1")}, dg.GetDirectPrecedents(p("C1")))
	_, exists := dg.GetNode(p("A1"))
	assert.False(t, exists)
}

func TestDependencyGraphClearKeepsInboundEdges(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddCellDependency(p("B1"), p("A1"))
	dg.AddCellDependency(p("A1"), p("Z9"))

	dg.ClearDependencies(p("A1"))
	assert.Equal(t, []Position{p("B1")}, dg.GetDirectDependents(p("A1")))
	assert.Empty(t, dg.GetDirectPrecedents(p("A1")))
}

func TestDependencyGraphAllDependents(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddCellDependency(p("B1"), p("A1"))
	dg.AddCellDependency(p("C1"), p("B1"))
	dg.AddCellDependency(p("D1"), p("B1"))
	dg.AddCellDependency(p("D1"), p("C1"))

	assert.Equal(t, []Position{p("B1"), p("C1"), p("D1")}, dg.GetAllDependents(p("A1")))
	assert.Empty(t, dg.GetAllDependents(p("D1")))
}

func TestDependencyGraphWouldCreateCycle(t *testing.T) {
	dg := NewDependencyGraph()
	// C1 -> B1 -> A1
	dg.AddCellDependency(p("B1"), p("A1"))
	dg.AddCellDependency(p("C1"), p("B1"))

	assert.True(t, dg.WouldCreateCycle(p("A1"), []Position{p("A1")}), "self reference")
	assert.True(t, dg.WouldCreateCycle(p("A1"), []Position{p("C1")}))
	assert.True(t, dg.WouldCreateCycle(p("A1"), []Position{p("X1"), p("B1")}))
	assert.False(t, dg.WouldCreateCycle(p("A1"), []Position{p("X1")}))
	assert.False(t, dg.WouldCreateCycle(p("C1"), []Position{p("A1")}), "already a precedent")
	assert.False(t, dg.WouldCreateCycle(p("A1"), nil))
}

func TestDependencyGraphCalculationOrder(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddCellDependency(p("C1"), p("B1"))
	dg.AddCellDependency(p("B1"), p("A1"))

	order, hasCycle := dg.GetCalculationOrder()
	assert.False(t, hasCycle)
	assert.Equal(t, []Position{p("A1"), p("B1"), p("C1")}, order)

	// the graph itself does not refuse cycles, the sheet does
	dg.AddCellDependency(p("A1"), p("C1"))
	assert.True(t, dg.HasCycle())
}
