// Package operators implements the pull-based cursor tree a compiled plan
// is executed through (spec 4.9): every logical operator is a small struct
// implementing Cursor, composed by holding its input cursor(s) and pulling
// from them until it can emit a tuple of its own. The tree is lazy and
// single-threaded per query; the one Accessor bound to the ExecutionContext
// is the sole point of contact with the transaction engine.
package operators

import (
	"fmt"
	"sync"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// Frame is the symbol-indexed value vector cursors read from and write to.
// Symbol assignment is the planner's job (out of scope here); operators are
// handed plain integer slots agreed on at plan-construction time.
type Frame struct {
	Values []value.Value
}

// NewFrame allocates a frame with n symbol slots, every slot initialized to
// null.
func NewFrame(n int) *Frame {
	f := &Frame{Values: make([]value.Value, n)}
	for i := range f.Values {
		f.Values[i] = value.Null()
	}
	return f
}

// Get reads slot sym, or the null value if sym is out of range (an unbound
// symbol on a frame that hasn't reached the operator that binds it yet).
func (f *Frame) Get(sym int) value.Value {
	if sym < 0 || sym >= len(f.Values) {
		return value.Null()
	}
	return f.Values[sym]
}

// Set writes val into slot sym.
func (f *Frame) Set(sym int, val value.Value) {
	if sym < 0 || sym >= len(f.Values) {
		return
	}
	f.Values[sym] = val
}

// Clone copies a frame's values (not the underlying container values,
// which are immutable-by-convention once placed on a frame) for operators
// that materialize multiple rows in flight (OrderBy, Accumulate, Aggregate).
func (f *Frame) Clone() *Frame {
	out := make([]value.Value, len(f.Values))
	copy(out, f.Values)
	return &Frame{Values: out}
}

// EvalContext is the evaluator's view into one pull: which accessor view to
// read property values under (NEW for write operators re-reading their own
// writes, OLD otherwise) plus the accessor itself for evaluator extensions
// that need to resolve a property by name.
type EvalContext struct {
	Acc  *accessor.Accessor
	View mvcc.View
}

// Expression is a function reference closing over whatever the planner
// needs to evaluate one scalar against a frame (spec 9, "Evaluator
// extension points": no dynamic dispatch table, just a borrowed closure).
type Expression func(ctx *EvalContext, frame *Frame) (value.Value, error)

// RuntimeTypeError reports an expression evaluating to a type an operator
// cannot use in the position it was evaluated (spec 7, RuntimeTypeError).
type RuntimeTypeError struct{ Detail string }

func (e *RuntimeTypeError) Error() string {
	return fmt.Sprintf("operators: runtime type error: %s", e.Detail)
}

// CancelledByClient reports a cooperative cancellation raised by
// ExecutionContext.MustAbort (spec 5, "cooperative cancellation").
type CancelledByClient struct{}

func (e *CancelledByClient) Error() string { return "operators: cancelled by client" }

// EvalFilter evaluates expr and applies the language's filter semantics:
// null is treated as false, non-boolean raises RuntimeTypeError (spec 4.9,
// Filter).
func EvalFilter(ctx *EvalContext, expr Expression, frame *Frame) (bool, error) {
	v, err := expr(ctx, frame)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if v.Kind != value.KindBool {
		return false, &RuntimeTypeError{Detail: fmt.Sprintf("filter expression evaluated to %s, expected bool", v.Kind)}
	}
	return v.B, nil
}

// EvalWeight evaluates expr and applies ExpandVariable's weighted-shortest-
// path weight semantics: non-numeric or negative raises RuntimeTypeError
// (spec 4.9, "negative weights or non-numeric weights raise a runtime
// error").
func EvalWeight(ctx *EvalContext, expr Expression, frame *Frame) (float64, error) {
	v, err := expr(ctx, frame)
	if err != nil {
		return 0, err
	}
	if !v.IsNumeric() {
		return 0, &RuntimeTypeError{Detail: fmt.Sprintf("weight expression evaluated to %s, expected a number", v.Kind)}
	}
	f, _ := v.AsFloat64()
	if f < 0 {
		return 0, &RuntimeTypeError{Detail: "negative edge weight"}
	}
	return f, nil
}

// EvalCount evaluates expr and requires a non-negative integer, Skip/Limit's
// shared count semantics (spec 4.9: "require non-negative integer").
func EvalCount(ctx *EvalContext, expr Expression, frame *Frame) (int64, error) {
	v, err := expr(ctx, frame)
	if err != nil {
		return 0, err
	}
	if v.Kind != value.KindInt {
		return 0, &RuntimeTypeError{Detail: fmt.Sprintf("count expression evaluated to %s, expected int", v.Kind)}
	}
	if v.I < 0 {
		return 0, &RuntimeTypeError{Detail: "negative count"}
	}
	return v.I, nil
}

// arena is the per-query memory pool backing edges_on_frame / BFS frontier
// intermediates (spec 9, "Memory pools"). Every cursor that borrows a slice
// from it returns the slice on Shutdown, regardless of success or error.
type arena struct {
	valueSlices sync.Pool
	uint64Slices sync.Pool
}

func newArena() *arena {
	return &arena{
		valueSlices:  sync.Pool{New: func() any { return make([]value.Value, 0, 16) }},
		uint64Slices: sync.Pool{New: func() any { return make([]uint64, 0, 16) }},
	}
}

func (a *arena) getValues() []value.Value {
	return a.valueSlices.Get().([]value.Value)[:0]
}

func (a *arena) putValues(s []value.Value) {
	a.valueSlices.Put(s) //nolint:staticcheck // intentional: pool release, not retained past Shutdown
}

func (a *arena) getUint64s() []uint64 {
	return a.uint64Slices.Get().([]uint64)[:0]
}

func (a *arena) putUint64s(s []uint64) {
	a.uint64Slices.Put(s) //nolint:staticcheck
}

// ExecutionContext is the per-query state threaded through every Pull call:
// the one Accessor bound to this execution, a cooperative-cancellation
// check, and the memory arena backing per-query intermediates.
type ExecutionContext struct {
	Acc       *accessor.Accessor
	MustAbort func() bool

	arena *arena
}

// NewExecutionContext binds a fresh execution context to acc. mustAbort may
// be nil (never cancels).
func NewExecutionContext(acc *accessor.Accessor, mustAbort func() bool) *ExecutionContext {
	return &ExecutionContext{Acc: acc, MustAbort: mustAbort, arena: newArena()}
}

func (ctx *ExecutionContext) checkAbort() error {
	if ctx.MustAbort != nil && ctx.MustAbort() {
		return &CancelledByClient{}
	}
	return nil
}

// Cursor is the pull interface every operator implements (spec 4.9): Pull
// either populates frame with the next tuple and returns true, or returns
// false on exhaustion. Reset rewinds the cursor to re-pull from the start
// (used by the right side of Cartesian/nested-loop constructs). Shutdown
// releases any arena-backed resources the cursor is holding, unconditionally.
type Cursor interface {
	Pull(ctx *ExecutionContext, frame *Frame) (bool, error)
	Reset()
	Shutdown()
}
