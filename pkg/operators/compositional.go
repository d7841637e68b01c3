package operators

import (
	"encoding/csv"
	"io"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// Merge pulls Match for every tuple Input produces; if Match yields at
// least one row, those rows pass through, otherwise Create runs once and
// its single row passes through instead (spec 4.9, the usual
// match-or-create compositional shape).
type Merge struct {
	Input, Match, Create Cursor

	matching   bool
	matchFound bool
}

func NewMerge(input, match, create Cursor) *Merge {
	return &Merge{Input: input, Match: match, Create: create}
}

func (m *Merge) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if !m.matching {
			ok, err := m.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			m.Match.Reset()
			m.matching = true
			m.matchFound = false
		}
		ok, err := m.Match.Pull(ctx, frame)
		if err != nil {
			return false, err
		}
		if ok {
			m.matchFound = true
			return true, nil
		}
		m.matching = false
		if m.matchFound {
			continue
		}
		m.Create.Reset()
		ok, err = m.Create.Pull(ctx, frame)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
}

func (m *Merge) Reset() {
	m.Input.Reset()
	m.matching = false
	m.matchFound = false
}

func (m *Merge) Shutdown() {
	m.Input.Shutdown()
	m.Match.Shutdown()
	m.Create.Shutdown()
}

// Optional pulls Branch for every tuple Input produces; if Branch yields
// nothing for that tuple, Optional emits exactly one row with every symbol
// in Symbols set to null instead (spec 4.9, "Optional").
type Optional struct {
	Input, Branch Cursor
	Symbols       []int

	branching bool
	found     bool
}

func NewOptional(input, branch Cursor, symbols []int) *Optional {
	return &Optional{Input: input, Branch: branch, Symbols: symbols}
}

func (o *Optional) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if !o.branching {
			ok, err := o.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			o.Branch.Reset()
			o.branching = true
			o.found = false
		}
		ok, err := o.Branch.Pull(ctx, frame)
		if err != nil {
			return false, err
		}
		if ok {
			o.found = true
			return true, nil
		}
		o.branching = false
		if o.found {
			continue
		}
		for _, sym := range o.Symbols {
			frame.Set(sym, value.Null())
		}
		return true, nil
	}
}

func (o *Optional) Reset() {
	o.Input.Reset()
	o.branching = false
	o.found = false
}

func (o *Optional) Shutdown() {
	o.Input.Shutdown()
	o.Branch.Shutdown()
}

// Unwind expands List's evaluated result into one tuple per element bound
// at Output; a null list yields zero rows for that input tuple (spec 4.9).
type Unwind struct {
	Input  Cursor
	List   Expression
	Output int
	View   mvcc.View

	pending []value.Value
}

func NewUnwind(input Cursor, list Expression, output int, view mvcc.View) *Unwind {
	return &Unwind{Input: input, List: list, Output: output, View: view}
}

func (u *Unwind) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(u.pending) == 0 {
			ok, err := u.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			v, err := u.List(&EvalContext{Acc: ctx.Acc, View: u.View}, frame)
			if err != nil {
				return false, err
			}
			if v.IsNull() {
				continue
			}
			if v.Kind != value.KindList {
				return false, &RuntimeTypeError{Detail: "UNWIND expression did not evaluate to a list"}
			}
			u.pending = v.L
			continue
		}
		elem := u.pending[0]
		u.pending = u.pending[1:]
		frame.Set(u.Output, elem)
		return true, nil
	}
}

func (u *Unwind) Reset()    { u.Input.Reset(); u.pending = nil }
func (u *Unwind) Shutdown() { u.Input.Shutdown() }

// Distinct drops tuples whose Symbols tuple has already been emitted
// (spec 4.9).
type Distinct struct {
	Input   Cursor
	Symbols []int

	seen map[string]bool
}

func NewDistinct(input Cursor, symbols []int) *Distinct {
	return &Distinct{Input: input, Symbols: symbols, seen: make(map[string]bool)}
}

func (d *Distinct) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		ok, err := d.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		key := ""
		for _, sym := range d.Symbols {
			key += valueGroupKey(frame.Get(sym)) + "|"
		}
		if d.seen[key] {
			continue
		}
		d.seen[key] = true
		return true, nil
	}
}

func (d *Distinct) Reset()    { d.Input.Reset(); d.seen = make(map[string]bool) }
func (d *Distinct) Shutdown() { d.Input.Shutdown() }

// Union emits every tuple from Left, then every tuple from Right; both
// sides are expected to write the same output symbols (spec 4.9).
type Union struct {
	Left, Right Cursor

	started  bool
	usingLeft bool
}

func NewUnion(left, right Cursor) *Union { return &Union{Left: left, Right: right} }

func (u *Union) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if err := ctx.checkAbort(); err != nil {
		return false, err
	}
	if !u.started {
		u.started = true
		u.usingLeft = true
	}
	if u.usingLeft {
		ok, err := u.Left.Pull(ctx, frame)
		if err != nil || ok {
			return ok, err
		}
		u.usingLeft = false
	}
	return u.Right.Pull(ctx, frame)
}

func (u *Union) Reset() {
	u.Left.Reset()
	u.Right.Reset()
	u.started = false
}

func (u *Union) Shutdown() {
	u.Left.Shutdown()
	u.Right.Shutdown()
}

// Cartesian emits the cross product of Left and Right, re-pulling Right
// from the start for every Left tuple (spec 4.9).
type Cartesian struct {
	Left, Right Cursor

	started bool
}

func NewCartesian(left, right Cursor) *Cartesian { return &Cartesian{Left: left, Right: right} }

func (c *Cartesian) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if !c.started {
			ok, err := c.Left.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			c.Right.Reset()
			c.started = true
		}
		ok, err := c.Right.Pull(ctx, frame)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		c.started = false
	}
}

func (c *Cartesian) Reset() {
	c.Left.Reset()
	c.Right.Reset()
	c.started = false
}

func (c *Cartesian) Shutdown() {
	c.Left.Shutdown()
	c.Right.Shutdown()
}

// Procedure is a registered callable CallProcedure invokes: given evaluated
// args, it returns zero or more output rows (spec 9, "Evaluator extension
// points" generalized to procedure calls — no dynamic dispatch table, a
// borrowed closure per call site).
type Procedure func(ctx *EvalContext, args []value.Value) ([][]value.Value, error)

// CallProcedure invokes Proc once per input tuple and emits one output row
// per result row, binding Outputs in order (spec 4.9).
type CallProcedure struct {
	Input   Cursor
	Proc    Procedure
	Args    []Expression
	Outputs []int
	View    mvcc.View

	rows   [][]value.Value
	idx    int
	called bool
}

func NewCallProcedure(input Cursor, proc Procedure, args []Expression, outputs []int, view mvcc.View) *CallProcedure {
	return &CallProcedure{Input: input, Proc: proc, Args: args, Outputs: outputs, View: view}
}

func (c *CallProcedure) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if !c.called {
			ok, err := c.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			evalCtx := &EvalContext{Acc: ctx.Acc, View: c.View}
			args := make([]value.Value, len(c.Args))
			for i, expr := range c.Args {
				v, err := expr(evalCtx, frame)
				if err != nil {
					return false, err
				}
				args[i] = v
			}
			rows, err := c.Proc(evalCtx, args)
			if err != nil {
				return false, err
			}
			c.rows = rows
			c.idx = 0
			c.called = true
		}
		if c.idx >= len(c.rows) {
			c.called = false
			continue
		}
		row := c.rows[c.idx]
		c.idx++
		for i, sym := range c.Outputs {
			if i < len(row) {
				frame.Set(sym, row[i])
			}
		}
		return true, nil
	}
}

func (c *CallProcedure) Reset()    { c.Input.Reset(); c.called = false; c.rows = nil; c.idx = 0 }
func (c *CallProcedure) Shutdown() { c.Input.Shutdown() }

// LoadCsv streams records from Reader, binding one row per Pull to Output
// as a list of strings (WithHeader == false) or a map keyed by the first
// record's fields (WithHeader == true), per spec 4.9's "compositional
// operators with the obvious set semantics" catch-all. Driven by Input
// (normally a single Once tuple); Reset reopens from RecordsFrom, supplied
// by the caller since io.Reader itself isn't seekable in general.
type LoadCsv struct {
	Input      Cursor
	RecordsFrom func() (*csv.Reader, io.Closer, error)
	WithHeader bool
	Output     int

	reader *csv.Reader
	closer io.Closer
	header []string
	opened bool
}

func NewLoadCsv(input Cursor, recordsFrom func() (*csv.Reader, io.Closer, error), withHeader bool, output int) *LoadCsv {
	return &LoadCsv{Input: input, RecordsFrom: recordsFrom, WithHeader: withHeader, Output: output}
}

func (l *LoadCsv) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if err := ctx.checkAbort(); err != nil {
		return false, err
	}
	if !l.opened {
		ok, err := l.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		reader, closer, err := l.RecordsFrom()
		if err != nil {
			return false, err
		}
		l.reader, l.closer, l.opened = reader, closer, true
		if l.WithHeader {
			header, err := reader.Read()
			if err != nil {
				if err == io.EOF {
					l.header = nil
				} else {
					return false, err
				}
			}
			l.header = header
		}
	}
	record, err := l.reader.Read()
	if err == io.EOF {
		if l.closer != nil {
			l.closer.Close()
		}
		l.opened = false
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if l.WithHeader {
		m := make(map[string]value.Value, len(record))
		for i, field := range record {
			if i < len(l.header) {
				m[l.header[i]] = value.Str(field)
			}
		}
		frame.Set(l.Output, value.Map(m))
	} else {
		vals := make([]value.Value, len(record))
		for i, field := range record {
			vals[i] = value.Str(field)
		}
		frame.Set(l.Output, value.List(vals))
	}
	return true, nil
}

func (l *LoadCsv) Reset() {
	l.Input.Reset()
	if l.closer != nil {
		l.closer.Close()
	}
	l.opened = false
}

func (l *LoadCsv) Shutdown() {
	l.Input.Shutdown()
	if l.closer != nil {
		l.closer.Close()
	}
}
