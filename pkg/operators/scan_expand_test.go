package operators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

func slotExpr(sym int) Expression {
	return func(ctx *EvalContext, frame *Frame) (value.Value, error) {
		return frame.Get(sym), nil
	}
}

func litExpr(v value.Value) Expression {
	return func(ctx *EvalContext, frame *Frame) (value.Value, error) {
		return v, nil
	}
}

// chain builds a chain of n vertices v0 -> v1 -> ... -> v(n-1), each edge
// typed KNOWS, returning their gids in path order.
func chain(t *testing.T, g *storage.Graph, n int) []uint64 {
	t.Helper()
	a := accessor.New(g)
	gids := make([]uint64, n)
	handles := make([]*accessor.VertexHandle, n)
	for i := 0; i < n; i++ {
		vh, err := a.CreateVertex()
		require.NoError(t, err)
		handles[i] = vh
		gids[i] = vh.GID()
	}
	knows := g.EdgeTypes.Intern("KNOWS")
	for i := 0; i+1 < n; i++ {
		_, err := a.CreateEdge(gids[i], gids[i+1], knows)
		require.NoError(t, err)
	}
	_, err := a.Commit()
	require.NoError(t, err)
	return gids
}

func TestScanAllEnumeratesEveryVertex(t *testing.T) {
	g := storage.NewGraph()
	chain(t, g, 3)
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	scan := NewScanAll(&Once{}, 0, mvcc.NEW)
	var count int
	for {
		ok, err := scan.Pull(ctx, NewFrame(1))
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 3, count)
}

func TestExpandSingleHop(t *testing.T) {
	g := storage.NewGraph()
	gids := chain(t, g, 3)
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	once := &Once{}
	produceSrc := NewProduce(once, []int{0}, []Expression{litExpr(value.Vertex(value.VertexRef{GID: gids[0]}))}, mvcc.NEW)
	exp := NewExpand(produceSrc, 0, 1, 2, accessor.DirOut, nil, mvcc.NEW, false)

	frame := NewFrame(3)
	ok, err := exp.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gids[1], frame.Get(2).AsVertex().GID)

	ok, err = exp.Pull(ctx, frame)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScanAllByLabelPropertyRangeBothBoundsNullIsEmpty(t *testing.T) {
	g := storage.NewGraph()
	a := accessor.New(g)
	vh, err := a.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, vh.SetLabel("Person"))
	require.NoError(t, vh.SetProperty("age", value.Int(30)))
	_, err = a.Commit()
	require.NoError(t, err)

	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)
	label := g.Labels.Intern("Person")
	prop := g.PropertyKeys.Intern("age")

	scan := NewScanAllByLabelPropertyRange(&Once{}, 0, mvcc.NEW, label, prop,
		litExpr(value.Null()), litExpr(value.Null()), true, true)
	ok, err := scan.Pull(ctx, NewFrame(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExpandVariableDFSLowerBoundZeroEmitsStartVertex(t *testing.T) {
	g := storage.NewGraph()
	gids := chain(t, g, 3)
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	once := &Once{}
	src := NewProduce(once, []int{0}, []Expression{litExpr(value.Vertex(value.VertexRef{GID: gids[0]}))}, mvcc.NEW)
	ev := NewExpandVariable(src, 0, 1, 2, accessor.DirOut, nil, ExpandDepthFirst,
		litExpr(value.Int(0)), litExpr(value.Int(1)), FilterLambda{}, false, mvcc.NEW)

	frame := NewFrame(3)
	ok, err := ev.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gids[0], frame.Get(2).AsVertex().GID)
	require.Equal(t, value.KindList, frame.Get(1).Kind)
	require.Len(t, frame.Get(1).L, 0)

	ok, err = ev.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gids[1], frame.Get(2).AsVertex().GID)
	require.Len(t, frame.Get(1).L, 1)

	ok, err = ev.Pull(ctx, frame)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExpandVariableBFSUnreachableSinkProducesNoTuples(t *testing.T) {
	g := storage.NewGraph()
	a := accessor.New(g)
	v1, err := a.CreateVertex()
	require.NoError(t, err)
	v2, err := a.CreateVertex()
	require.NoError(t, err)
	v3, err := a.CreateVertex() // disconnected
	require.NoError(t, err)
	knows := g.EdgeTypes.Intern("KNOWS")
	_, err = a.CreateEdge(v1.GID(), v2.GID(), knows)
	require.NoError(t, err)
	_, err = a.Commit()
	require.NoError(t, err)

	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	once := &Once{}
	src := NewProduce(once, []int{0, 2}, []Expression{
		litExpr(value.Vertex(value.VertexRef{GID: v1.GID()})),
		litExpr(value.Vertex(value.VertexRef{GID: v3.GID()})),
	}, mvcc.NEW)
	ev := NewExpandVariable(src, 0, 1, 2, accessor.DirOut, nil, ExpandBreadthFirstST,
		nil, nil, FilterLambda{}, true, mvcc.NEW)

	ok, err := ev.Pull(ctx, NewFrame(3))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExpandVariableWeightedShortestPathRejectsNegativeWeight(t *testing.T) {
	g := storage.NewGraph()
	a := accessor.New(g)
	v1, err := a.CreateVertex()
	require.NoError(t, err)
	v2, err := a.CreateVertex()
	require.NoError(t, err)
	knows := g.EdgeTypes.Intern("KNOWS")
	eh, err := a.CreateEdge(v1.GID(), v2.GID(), knows)
	require.NoError(t, err)
	require.NoError(t, eh.SetProperty("weight", value.Int(-1)))
	_, err = a.Commit()
	require.NoError(t, err)

	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	weightExpr := func(ctx *EvalContext, frame *Frame) (value.Value, error) {
		edgeRef := frame.Get(1).AsEdge()
		h, err := ctx.Acc.FindEdge(edgeRef.GID, ctx.View)
		if err != nil {
			return value.Value{}, err
		}
		return h.Property(ctx.View, "weight")
	}

	once := &Once{}
	src := NewProduce(once, []int{0}, []Expression{litExpr(value.Vertex(value.VertexRef{GID: v1.GID()}))}, mvcc.NEW)
	ev := NewExpandVariable(src, 0, 1, 2, accessor.DirOut, nil, ExpandWeightedShortestPath,
		nil, nil, FilterLambda{Weight: weightExpr}, false, mvcc.NEW)

	_, err = ev.Pull(ctx, NewFrame(3))
	require.Error(t, err)
	var rte *RuntimeTypeError
	require.ErrorAs(t, err, &rte)
}
