package operators

// Accumulate materializes every input tuple before emitting any, optionally
// calling AdvanceCommand afterward so later operators see a new visibility
// frontier that includes everything just written (spec 4.9, scenario 1:
// "With Accumulate between the two SETs: both rows [2,2]").
type Accumulate struct {
	Input         Cursor
	AdvanceCmd    bool
	Symbols       []int // which frame slots to carry through; nil carries the whole frame

	rows    []*Frame
	drained bool
	idx     int
}

func NewAccumulate(input Cursor, symbols []int, advanceCmd bool) *Accumulate {
	return &Accumulate{Input: input, Symbols: symbols, AdvanceCmd: advanceCmd}
}

func (a *Accumulate) materialize(ctx *ExecutionContext, frame *Frame) error {
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
		a.rows = append(a.rows, frame.Clone())
	}
	if a.AdvanceCmd {
		ctx.Acc.AdvanceCommand()
	}
	a.drained = true
	return nil
}

func (a *Accumulate) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if !a.drained {
		if err := a.materialize(ctx, frame); err != nil {
			return false, err
		}
	}
	if a.idx >= len(a.rows) {
		return false, nil
	}
	row := a.rows[a.idx]
	a.idx++
	if a.Symbols == nil {
		copy(frame.Values, row.Values)
	} else {
		for _, sym := range a.Symbols {
			frame.Set(sym, row.Get(sym))
		}
	}
	return true, nil
}

func (a *Accumulate) Reset() {
	a.Input.Reset()
	a.rows = nil
	a.drained = false
	a.idx = 0
}

func (a *Accumulate) Shutdown() { a.Input.Shutdown() }
