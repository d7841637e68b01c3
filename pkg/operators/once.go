package operators

// Once emits exactly one empty tuple then is exhausted; the universal root
// for sourceless plans (spec 4.9).
type Once struct {
	pulled bool
}

func NewOnce() *Once { return &Once{} }

func (o *Once) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	if err := ctx.checkAbort(); err != nil {
		return false, err
	}
	if o.pulled {
		return false, nil
	}
	o.pulled = true
	return true, nil
}

func (o *Once) Reset()    { o.pulled = false }
func (o *Once) Shutdown() {}
