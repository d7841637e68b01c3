package operators

import "github.com/arborgraph/arbor/pkg/mvcc"

// Filter drops tuples whose Predicate is not true: null is treated as
// false, non-boolean raises RuntimeTypeError (spec 4.9).
type Filter struct {
	Input     Cursor
	Predicate Expression
	View      mvcc.View
}

func NewFilter(input Cursor, predicate Expression, view mvcc.View) *Filter {
	return &Filter{Input: input, Predicate: predicate, View: view}
}

func (f *Filter) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		ok, err := f.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		pass, err := EvalFilter(&EvalContext{Acc: ctx.Acc, View: f.View}, f.Predicate, frame)
		if err != nil {
			return false, err
		}
		if pass {
			return true, nil
		}
	}
}

func (f *Filter) Reset()    { f.Input.Reset() }
func (f *Filter) Shutdown() { f.Input.Shutdown() }

// Produce evaluates a list of output expressions into dedicated frame
// slots, the column-projection step (spec 4.9).
type Produce struct {
	Input   Cursor
	Outputs []int
	Exprs   []Expression
	View    mvcc.View
}

func NewProduce(input Cursor, outputs []int, exprs []Expression, view mvcc.View) *Produce {
	return &Produce{Input: input, Outputs: outputs, Exprs: exprs, View: view}
}

func (p *Produce) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if err := ctx.checkAbort(); err != nil {
		return false, err
	}
	ok, err := p.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	evalCtx := &EvalContext{Acc: ctx.Acc, View: p.View}
	for i, expr := range p.Exprs {
		v, err := expr(evalCtx, frame)
		if err != nil {
			return false, err
		}
		frame.Set(p.Outputs[i], v)
	}
	return true, nil
}

func (p *Produce) Reset()    { p.Input.Reset() }
func (p *Produce) Shutdown() { p.Input.Shutdown() }
