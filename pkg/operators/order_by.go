package operators

import (
	"sort"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// OrderByKey is one sort key: an expression plus ascending/descending.
type OrderByKey struct {
	Expr Expression
	Desc bool
}

// OrderBy materializes input and sorts it by the ordered tuple of key
// expressions, each with its own direction (spec 4.9). Ties compare the
// remaining keys in order. Null keys sort last regardless of direction;
// any other pair value.Compare leaves unordered (ok=false) counts as a tie
// on that key.
type OrderBy struct {
	Input Cursor
	Keys  []OrderByKey
	View  mvcc.View

	rows    []*Frame
	sortKeys [][]value.Value
	sorted  bool
	idx     int
}

func NewOrderBy(input Cursor, keys []OrderByKey, view mvcc.View) *OrderBy {
	return &OrderBy{Input: input, Keys: keys, View: view}
}

func (o *OrderBy) materialize(ctx *ExecutionContext, frame *Frame) error {
	evalCtx := &EvalContext{Acc: ctx.Acc, View: o.View}
	for {
		if err := ctx.checkAbort(); err != nil {
			return err
		}
		ok, err := o.Input.Pull(ctx, frame)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		keys := make([]value.Value, len(o.Keys))
		for i, k := range o.Keys {
			v, err := k.Expr(evalCtx, frame)
			if err != nil {
				return err
			}
			keys[i] = v
		}
		o.rows = append(o.rows, frame.Clone())
		o.sortKeys = append(o.sortKeys, keys)
	}
	perm := make([]int, len(o.rows))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return o.less(o.sortKeys[perm[i]], o.sortKeys[perm[j]])
	})
	sorted := make([]*Frame, len(perm))
	for i, p := range perm {
		sorted[i] = o.rows[p]
	}
	o.rows = sorted
	o.sorted = true
	return nil
}

func (o *OrderBy) less(a, b []value.Value) bool {
	for i := range a {
		if a[i].IsNull() && b[i].IsNull() {
			continue
		}
		if a[i].IsNull() {
			return false // nulls sort last regardless of direction
		}
		if b[i].IsNull() {
			return true
		}
		ord, ok := value.Compare(a[i], b[i])
		if !ok || ord == value.Equal_ {
			continue
		}
		less := ord == value.Less
		if o.Keys[i].Desc {
			less = !less
		}
		return less
	}
	return false
}

func (o *OrderBy) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if !o.sorted {
		if err := o.materialize(ctx, frame); err != nil {
			return false, err
		}
	}
	if o.idx >= len(o.rows) {
		return false, nil
	}
	copy(frame.Values, o.rows[o.idx].Values)
	o.idx++
	return true, nil
}

func (o *OrderBy) Reset() {
	o.Input.Reset()
	o.rows = nil
	o.sortKeys = nil
	o.sorted = false
	o.idx = 0
}

func (o *OrderBy) Shutdown() { o.Input.Shutdown() }
