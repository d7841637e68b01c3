package operators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

func TestAggregateEmptyInputNoGroupingYieldsOneDefaultRow(t *testing.T) {
	g := storage.NewGraph()
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	agg := NewAggregate(NewFilter(&Once{}, litExpr(value.Bool(false)), mvcc.NEW), nil, nil, []AggregateSpec{
		{Func: AggCountStar, Output: 0},
		{Func: AggSum, Expr: slotExpr(1), Output: 1},
		{Func: AggCollectList, Expr: slotExpr(1), Output: 2},
	}, mvcc.NEW)

	frame := NewFrame(3)
	ok, err := agg.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.Int(0), frame.Get(0))
	require.True(t, frame.Get(1).IsNull())
	require.Equal(t, value.KindList, frame.Get(2).Kind)
	require.Len(t, frame.Get(2).L, 0)

	ok, err = agg.Pull(ctx, frame)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAggregateEmptyInputWithGroupingYieldsNoRows(t *testing.T) {
	g := storage.NewGraph()
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	agg := NewAggregate(NewFilter(&Once{}, litExpr(value.Bool(false)), mvcc.NEW),
		[]Expression{slotExpr(0)}, []int{0},
		[]AggregateSpec{{Func: AggCountStar, Output: 1}}, mvcc.NEW)

	ok, err := agg.Pull(ctx, NewFrame(2))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSkipAndLimit(t *testing.T) {
	g := storage.NewGraph()
	chain(t, g, 5)
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)

	scan := NewScanAll(&Once{}, 0, mvcc.NEW)
	skip := NewSkip(scan, litExpr(value.Int(2)), mvcc.NEW)
	limit := NewLimit(skip, litExpr(value.Int(2)), mvcc.NEW)

	frame := NewFrame(1)
	var count int
	for {
		ok, err := limit.Pull(ctx, frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 2, count)
}

func TestSetPropertyThenReadBack(t *testing.T) {
	g := storage.NewGraph()
	gids := chain(t, g, 1)
	acc := accessor.New(g)
	ctx := NewExecutionContext(acc, nil)
	mut := AccessorMutator{Acc: acc}

	once := &Once{}
	src := NewProduce(once, []int{0}, []Expression{litExpr(value.Vertex(value.VertexRef{GID: gids[0]}))}, mvcc.NEW)
	set := NewSetProperty(src, 0, "name", litExpr(value.Str("ada")), mut)

	ok, err := set.Pull(ctx, NewFrame(1))
	require.NoError(t, err)
	require.True(t, ok)

	h, err := acc.FindVertex(gids[0], mvcc.NEW)
	require.NoError(t, err)
	v, err := h.Property(mvcc.NEW, "name")
	require.NoError(t, err)
	require.Equal(t, value.Str("ada"), v)
}

func TestSetPropertiesReplaceClearsUnmentionedKeys(t *testing.T) {
	g := storage.NewGraph()
	gids := chain(t, g, 1)
	acc := accessor.New(g)
	mut := AccessorMutator{Acc: acc}
	h, err := acc.FindVertex(gids[0], mvcc.NEW)
	require.NoError(t, err)
	require.NoError(t, h.SetProperty("name", value.Str("ada")))
	require.NoError(t, h.SetProperty("age", value.Int(30)))

	ctx := NewExecutionContext(acc, nil)
	once := &Once{}
	src := NewProduce(once, []int{0}, []Expression{litExpr(value.Vertex(value.VertexRef{GID: gids[0]}))}, mvcc.NEW)
	newMap := litExpr(value.Map(map[string]value.Value{"name": value.Str("grace")}))
	sp := NewSetProperties(src, 0, newMap, SetPropertiesReplace, mut)

	ok, err := sp.Pull(ctx, NewFrame(1))
	require.NoError(t, err)
	require.True(t, ok)

	name, err := h.Property(mvcc.NEW, "name")
	require.NoError(t, err)
	require.Equal(t, value.Str("grace"), name)
	age, err := h.Property(mvcc.NEW, "age")
	require.NoError(t, err)
	require.True(t, age.IsNull())
}

func TestAccumulateAdvanceCommandMakesWritesVisibleToLaterReads(t *testing.T) {
	g := storage.NewGraph()
	gids := chain(t, g, 1)
	acc := accessor.New(g)
	mut := AccessorMutator{Acc: acc}
	ctx := NewExecutionContext(acc, nil)

	once := &Once{}
	src := NewProduce(once, []int{0}, []Expression{litExpr(value.Vertex(value.VertexRef{GID: gids[0]}))}, mvcc.NEW)
	set1 := NewSetProperty(src, 0, "counter", litExpr(value.Int(1)), mut)
	accOp := NewAccumulate(set1, nil, true)

	readCounter := func(ctx *EvalContext, frame *Frame) (value.Value, error) {
		h, err := ctx.Acc.FindVertex(gids[0], ctx.View)
		if err != nil {
			return value.Value{}, err
		}
		return h.Property(ctx.View, "counter")
	}
	produce := NewProduce(accOp, []int{1}, []Expression{readCounter}, mvcc.OLD)

	frame := NewFrame(2)
	ok, err := produce.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.Int(1), frame.Get(1))
}

func TestUnwindNullListYieldsNoRows(t *testing.T) {
	acc := accessor.New(storage.NewGraph())
	ctx := NewExecutionContext(acc, nil)
	u := NewUnwind(&Once{}, litExpr(value.Null()), 0, mvcc.NEW)
	ok, err := u.Pull(ctx, NewFrame(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnwindExpandsListElements(t *testing.T) {
	acc := accessor.New(storage.NewGraph())
	ctx := NewExecutionContext(acc, nil)
	list := value.List([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	u := NewUnwind(&Once{}, litExpr(list), 0, mvcc.NEW)

	frame := NewFrame(1)
	var got []int64
	for {
		ok, err := u.Pull(ctx, frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, frame.Get(0).I)
	}
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestDistinctDropsDuplicateTuples(t *testing.T) {
	acc := accessor.New(storage.NewGraph())
	ctx := NewExecutionContext(acc, nil)
	list := value.List([]value.Value{value.Int(1), value.Int(1), value.Int(2)})
	u := NewUnwind(&Once{}, litExpr(list), 0, mvcc.NEW)
	d := NewDistinct(u, []int{0})

	frame := NewFrame(1)
	var got []int64
	for {
		ok, err := d.Pull(ctx, frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, frame.Get(0).I)
	}
	require.Equal(t, []int64{1, 2}, got)
}

func TestOrderByDescendingWithNullsLast(t *testing.T) {
	acc := accessor.New(storage.NewGraph())
	ctx := NewExecutionContext(acc, nil)
	list := value.List([]value.Value{value.Int(3), value.Null(), value.Int(1), value.Int(2)})
	u := NewUnwind(&Once{}, litExpr(list), 0, mvcc.NEW)
	ob := NewOrderBy(u, []OrderByKey{{Expr: slotExpr(0), Desc: true}}, mvcc.NEW)

	frame := NewFrame(1)
	var got []value.Value
	for {
		ok, err := ob.Pull(ctx, frame)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, frame.Get(0))
	}
	require.Equal(t, value.Int(3), got[0])
	require.Equal(t, value.Int(2), got[1])
	require.Equal(t, value.Int(1), got[2])
	require.True(t, got[3].IsNull())
}

func TestMergeRunsCreateOnlyWhenMatchFindsNothing(t *testing.T) {
	acc := accessor.New(storage.NewGraph())
	ctx := NewExecutionContext(acc, nil)

	matchFails := NewFilter(&Once{}, litExpr(value.Bool(false)), mvcc.NEW)
	created := false
	createOnce := &fnCursor{pull: func(ctx *ExecutionContext, frame *Frame) (bool, error) {
		if created {
			return false, nil
		}
		created = true
		frame.Set(0, value.Int(99))
		return true, nil
	}}
	m := NewMerge(&Once{}, matchFails, createOnce)

	frame := NewFrame(1)
	ok, err := m.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.Int(99), frame.Get(0))

	ok, err = m.Pull(ctx, frame)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOptionalEmitsNullsWhenBranchFindsNothing(t *testing.T) {
	acc := accessor.New(storage.NewGraph())
	ctx := NewExecutionContext(acc, nil)

	branch := NewFilter(&Once{}, litExpr(value.Bool(false)), mvcc.NEW)
	opt := NewOptional(&Once{}, branch, []int{0})

	frame := NewFrame(1)
	frame.Set(0, value.Int(5))
	ok, err := opt.Pull(ctx, frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, frame.Get(0).IsNull())
}

// fnCursor wraps a Pull function for tests that need an ad hoc source.
type fnCursor struct {
	pull func(ctx *ExecutionContext, frame *Frame) (bool, error)
}

func (f *fnCursor) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) { return f.pull(ctx, frame) }
func (f *fnCursor) Reset()                                                {}
func (f *fnCursor) Shutdown()                                              {}
