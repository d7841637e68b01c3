package operators

import "github.com/arborgraph/arbor/pkg/mvcc"

// Skip evaluates Count once, on the first pull, and discards that many
// tuples before passing the rest through (spec 4.9).
type Skip struct {
	Input Cursor
	Count Expression
	View  mvcc.View

	evaluated bool
	remaining int64
}

func NewSkip(input Cursor, count Expression, view mvcc.View) *Skip {
	return &Skip{Input: input, Count: count, View: view}
}

func (s *Skip) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if !s.evaluated {
		n, err := EvalCount(&EvalContext{Acc: ctx.Acc, View: s.View}, s.Count, frame)
		if err != nil {
			return false, err
		}
		s.remaining = n
		s.evaluated = true
	}
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		ok, err := s.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		if s.remaining > 0 {
			s.remaining--
			continue
		}
		return true, nil
	}
}

func (s *Skip) Reset()    { s.Input.Reset(); s.evaluated = false }
func (s *Skip) Shutdown() { s.Input.Shutdown() }

// Limit evaluates Count once, on the first pull, and stops emitting after
// that many tuples (spec 4.9).
type Limit struct {
	Input Cursor
	Count Expression
	View  mvcc.View

	evaluated bool
	remaining int64
}

func NewLimit(input Cursor, count Expression, view mvcc.View) *Limit {
	return &Limit{Input: input, Count: count, View: view}
}

func (l *Limit) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if !l.evaluated {
		n, err := EvalCount(&EvalContext{Acc: ctx.Acc, View: l.View}, l.Count, frame)
		if err != nil {
			return false, err
		}
		l.remaining = n
		l.evaluated = true
	}
	if l.remaining <= 0 {
		return false, nil
	}
	if err := ctx.checkAbort(); err != nil {
		return false, err
	}
	ok, err := l.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	l.remaining--
	return true, nil
}

func (l *Limit) Reset()    { l.Input.Reset(); l.evaluated = false }
func (l *Limit) Shutdown() { l.Input.Shutdown() }
