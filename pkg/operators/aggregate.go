package operators

import (
	"fmt"
	"strconv"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// AggregateFunc selects one of the per-group aggregate computations of
// spec 4.9.
type AggregateFunc int

const (
	AggCountStar AggregateFunc = iota
	AggCountExpr
	AggSum
	AggAvg
	AggMin
	AggMax
	AggCollectList
	AggCollectMap
)

// AggregateSpec is one aggregate computed per group: Expr feeds
// Count/Sum/Avg/Min/Max/CollectList; KeyExpr/ValueExpr feed CollectMap.
// Output is the frame slot the finished value is written to.
type AggregateSpec struct {
	Func      AggregateFunc
	Expr      Expression
	KeyExpr   Expression
	ValueExpr Expression
	Output    int
}

type aggAccumulator struct {
	count      int64
	sum        float64
	numCount   int64
	min, max   value.Value
	haveMinMax bool
	list       []value.Value
	m          map[string]value.Value
}

func newAggAccumulator() *aggAccumulator {
	return &aggAccumulator{m: make(map[string]value.Value)}
}

func (a *aggAccumulator) finish(fn AggregateFunc) (value.Value, error) {
	switch fn {
	case AggCountStar, AggCountExpr:
		return value.Int(a.count), nil
	case AggSum:
		if a.numCount == 0 {
			return value.Null(), nil
		}
		return value.Float(a.sum), nil
	case AggAvg:
		if a.numCount == 0 {
			return value.Null(), nil
		}
		return value.Float(a.sum / float64(a.numCount)), nil
	case AggMin:
		if !a.haveMinMax {
			return value.Null(), nil
		}
		return a.min, nil
	case AggMax:
		if !a.haveMinMax {
			return value.Null(), nil
		}
		return a.max, nil
	case AggCollectList:
		if a.list == nil {
			return value.List(nil), nil
		}
		return value.List(a.list), nil
	case AggCollectMap:
		return value.Map(a.m), nil
	default:
		return value.Value{}, fmt.Errorf("operators: unknown aggregate function %d", fn)
	}
}

// aggCompare orders bool/number/string for MIN/MAX (spec 4.9: "MIN/MAX
// accept bool, number, string"), a wider set than value.Compare's
// numeric/string-only ordering.
func aggCompare(a, b value.Value) (value.Ordering, bool) {
	if a.Kind == value.KindBool && b.Kind == value.KindBool {
		switch {
		case a.B == b.B:
			return value.Equal_, true
		case !a.B:
			return value.Less, true
		default:
			return value.Greater, true
		}
	}
	return value.Compare(a, b)
}

func (a *aggAccumulator) apply(spec AggregateSpec, evalCtx *EvalContext, frame *Frame) error {
	a.count++
	switch spec.Func {
	case AggCountStar:
		return nil
	case AggCountExpr:
		v, err := spec.Expr(evalCtx, frame)
		if err != nil {
			return err
		}
		if v.IsNull() {
			a.count--
		}
		return nil
	case AggSum, AggAvg:
		v, err := spec.Expr(evalCtx, frame)
		if err != nil {
			return err
		}
		if v.IsNull() {
			return nil
		}
		if !v.IsNumeric() {
			return &RuntimeTypeError{Detail: fmt.Sprintf("SUM/AVG over non-numeric value %s", v.Kind)}
		}
		f, _ := v.AsFloat64()
		a.sum += f
		a.numCount++
		return nil
	case AggMin, AggMax:
		v, err := spec.Expr(evalCtx, frame)
		if err != nil {
			return err
		}
		if v.IsNull() {
			return nil
		}
		if v.Kind != value.KindBool && !v.IsNumeric() && v.Kind != value.KindString {
			return &RuntimeTypeError{Detail: fmt.Sprintf("MIN/MAX over unsupported type %s", v.Kind)}
		}
		if !a.haveMinMax {
			a.min, a.max = v, v
			a.haveMinMax = true
			return nil
		}
		if ord, ok := aggCompare(v, a.min); ok && ord == value.Less {
			a.min = v
		}
		if ord, ok := aggCompare(v, a.max); ok && ord == value.Greater {
			a.max = v
		}
		return nil
	case AggCollectList:
		v, err := spec.Expr(evalCtx, frame)
		if err != nil {
			return err
		}
		if !v.IsNull() {
			a.list = append(a.list, v)
		}
		return nil
	case AggCollectMap:
		k, err := spec.KeyExpr(evalCtx, frame)
		if err != nil {
			return err
		}
		v, err := spec.ValueExpr(evalCtx, frame)
		if err != nil {
			return err
		}
		if k.Kind != value.KindString {
			return &RuntimeTypeError{Detail: "COLLECT_MAP key did not evaluate to a string"}
		}
		a.m[k.S] = v
		return nil
	default:
		return fmt.Errorf("operators: unknown aggregate function %d", spec.Func)
	}
}

// Aggregate groups input by GroupBy and computes Specs per group (spec
// 4.9). Empty input with GroupBy == nil emits exactly one default row;
// empty input with GroupBy set emits no rows.
type Aggregate struct {
	Input        Cursor
	GroupBy      []Expression
	GroupOutputs []int
	Specs        []AggregateSpec
	View         mvcc.View

	groupOrder []string
	groupKeys  map[string][]value.Value
	groupAccs  map[string][]*aggAccumulator
	ready      bool
	idx        int
}

func NewAggregate(input Cursor, groupBy []Expression, groupOutputs []int, specs []AggregateSpec, view mvcc.View) *Aggregate {
	return &Aggregate{Input: input, GroupBy: groupBy, GroupOutputs: groupOutputs, Specs: specs, View: view}
}

func valueGroupKey(v value.Value) string {
	switch v.Kind {
	case value.KindNull:
		return "N"
	case value.KindBool:
		if v.B {
			return "b1"
		}
		return "b0"
	case value.KindInt:
		return "i" + strconv.FormatInt(v.I, 10)
	case value.KindFloat:
		return "f" + strconv.FormatFloat(v.F, 'g', -1, 64)
	case value.KindString:
		return "s" + v.S
	case value.KindVertexRef:
		return "v" + strconv.FormatUint(v.AsVertex().GID, 10)
	case value.KindEdgeRef:
		return "e" + strconv.FormatUint(v.AsEdge().GID, 10)
	case value.KindList:
		out := "L["
		for _, e := range v.L {
			out += valueGroupKey(e) + ","
		}
		return out + "]"
	case value.KindMap:
		out := "M{"
		for k, e := range v.M {
			out += k + "=" + valueGroupKey(e) + ";"
		}
		return out + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (a *Aggregate) materialize(ctx *ExecutionContext, frame *Frame) error {
	a.groupKeys = make(map[string][]value.Value)
	a.groupAccs = make(map[string][]*aggAccumulator)
	evalCtx := &EvalContext{Acc: ctx.Acc, View: a.View}

	noGrouping := len(a.GroupBy) == 0
	if noGrouping {
		a.groupOrder = append(a.groupOrder, "")
		accs := make([]*aggAccumulator, len(a.Specs))
		for i := range accs {
			accs[i] = newAggAccumulator()
		}
		a.groupAccs[""] = accs
		a.groupKeys[""] = nil
	}

	for {
		if err := ctx.checkAbort(); err != nil {
			return err
		}
		ok, err := a.Input.Pull(ctx, frame)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		keys := make([]value.Value, len(a.GroupBy))
		keyStr := ""
		for i, expr := range a.GroupBy {
			v, err := expr(evalCtx, frame)
			if err != nil {
				return err
			}
			keys[i] = v
			keyStr += valueGroupKey(v) + "|"
		}
		accs, seen := a.groupAccs[keyStr]
		if !seen {
			accs = make([]*aggAccumulator, len(a.Specs))
			for i := range accs {
				accs[i] = newAggAccumulator()
			}
			a.groupAccs[keyStr] = accs
			a.groupKeys[keyStr] = keys
			a.groupOrder = append(a.groupOrder, keyStr)
		}
		for i, spec := range a.Specs {
			if err := accs[i].apply(spec, evalCtx, frame); err != nil {
				return err
			}
		}
	}
	a.ready = true
	return nil
}

func (a *Aggregate) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if !a.ready {
		if err := a.materialize(ctx, frame); err != nil {
			return false, err
		}
	}
	if a.idx >= len(a.groupOrder) {
		return false, nil
	}
	keyStr := a.groupOrder[a.idx]
	a.idx++
	keys := a.groupKeys[keyStr]
	for i, sym := range a.GroupOutputs {
		if i < len(keys) {
			frame.Set(sym, keys[i])
		}
	}
	accs := a.groupAccs[keyStr]
	for i, spec := range a.Specs {
		v, err := accs[i].finish(spec.Func)
		if err != nil {
			return false, err
		}
		frame.Set(spec.Output, v)
	}
	return true, nil
}

func (a *Aggregate) Reset() {
	a.Input.Reset()
	a.groupOrder = nil
	a.groupKeys = nil
	a.groupAccs = nil
	a.ready = false
	a.idx = 0
}

func (a *Aggregate) Shutdown() { a.Input.Shutdown() }
