package operators

import (
	"container/heap"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

// ExpandMode selects one of ExpandVariable's four traversal strategies
// (spec 4.9), grounded on the original operator tree's ExpandVariableCursor,
// STShortestPathCursor and ExpandWeightedShortestPathCursor.
type ExpandMode int

const (
	ExpandDepthFirst ExpandMode = iota
	ExpandBreadthFirst
	ExpandBreadthFirstST
	ExpandWeightedShortestPath
)

// FilterLambda is the per-edge predicate variable expansion consults while
// walking (null counts as false, non-bool raises RuntimeTypeError). Weight
// is only evaluated in ExpandWeightedShortestPath mode.
type FilterLambda struct {
	Filter Expression // may be nil (no filter)
	Weight Expression // required for ExpandWeightedShortestPath
}

// ExpandVariable performs variable-length path expansion from the vertex
// bound at Source, binding the terminal vertex at VertexOut and the walked
// edge list at EdgeOut (spec 4.9, "Depth-first... Breadth-first
// (single-source)... Breadth-first (s-t)... Weighted shortest path... All
// modes honour edge-type filter, user filter lambda (null = false), and
// cancellation checks at every step").
type ExpandVariable struct {
	Input          Cursor
	Source         int
	EdgeOut        int
	VertexOut      int
	Dir            accessor.Direction
	EdgeTypes      []storage.NameID
	Mode           ExpandMode
	LowerBound     Expression // nil means 1 (0 for DFS/BFS single-source only if explicitly supplied)
	UpperBound     Expression // nil means unbounded
	Lambda         FilterLambda
	VertexOutBound bool // s-t mode requires this true; other modes may also pre-bind it as a filter
	View           mvcc.View

	// dfs state: one edge-iterator frame per depth.
	dfsLevels [][]*accessor.EdgeHandle
	dfsEdges  []value.Value // edges currently placed on the frame, one per active depth
	dfsPath   []uint64      // vertex visited at each depth, len(dfsPath) == len(dfsEdges)+1

	// bfs/weighted results, replayed one at a time.
	results []expandResult
	resIdx  int

	lower, upper int64

	// acc and arena are stashed at the start of each Pull so helper methods
	// below don't need ctx threaded through every call.
	acc   *accessor.Accessor
	arena *arena
}

type expandResult struct {
	vertex uint64
	edges  []value.Value
}

func NewExpandVariable(input Cursor, source, edgeOut, vertexOut int, dir accessor.Direction, edgeTypes []storage.NameID, mode ExpandMode, lower, upper Expression, lambda FilterLambda, vertexOutBound bool, view mvcc.View) *ExpandVariable {
	return &ExpandVariable{
		Input: input, Source: source, EdgeOut: edgeOut, VertexOut: vertexOut,
		Dir: dir, EdgeTypes: edgeTypes, Mode: mode, LowerBound: lower, UpperBound: upper,
		Lambda: lambda, VertexOutBound: vertexOutBound, View: view,
	}
}

func (e *ExpandVariable) matchesType(et storage.NameID) bool {
	if len(e.EdgeTypes) == 0 {
		return true
	}
	for _, want := range e.EdgeTypes {
		if want == et {
			return true
		}
	}
	return false
}

func (e *ExpandVariable) edgesFrom(gid uint64) []*accessor.EdgeHandle {
	h, err := e.acc.FindVertex(gid, e.View)
	if err != nil || h == nil {
		return nil
	}
	var out []*accessor.EdgeHandle
	if e.Dir != accessor.DirIn {
		out = append(out, h.OutEdges(e.View)...)
	}
	if e.Dir != accessor.DirOut {
		out = append(out, h.InEdges(e.View)...)
	}
	return out
}

func (e *ExpandVariable) bounds(ctx *ExecutionContext, frame *Frame, defaultLower int64) (int64, int64, error) {
	evalCtx := &EvalContext{Acc: e.acc, View: e.View}
	lower := defaultLower
	if e.LowerBound != nil {
		n, err := EvalCount(evalCtx, e.LowerBound, frame)
		if err != nil {
			return 0, 0, err
		}
		lower = n
	}
	upper := int64(1<<62)
	if e.UpperBound != nil {
		n, err := EvalCount(evalCtx, e.UpperBound, frame)
		if err != nil {
			return 0, 0, err
		}
		upper = n
	}
	return lower, upper, nil
}

func (e *ExpandVariable) checkFilter(ctx *ExecutionContext, frame *Frame, edgeSym, nodeSym int, edge value.Value, vertex uint64) (bool, error) {
	if e.Lambda.Filter == nil {
		return true, nil
	}
	saveEdge, saveNode := frame.Get(edgeSym), frame.Get(nodeSym)
	frame.Set(edgeSym, edge)
	frame.Set(nodeSym, value.Vertex(value.VertexRef{GID: vertex}))
	ok, err := EvalFilter(&EvalContext{Acc: e.acc, View: e.View}, e.Lambda.Filter, frame)
	frame.Set(edgeSym, saveEdge)
	frame.Set(nodeSym, saveNode)
	return ok, err
}

func edgeValue(h *accessor.EdgeHandle, fromGID uint64) value.Value {
	return value.Edge(value.EdgeRef{GID: h.GID(), From: h.From(), To: h.To(), IsRev: h.From() != fromGID})
}

func (e *ExpandVariable) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	e.acc = ctx.Acc
	e.arena = ctx.arena
	switch e.Mode {
	case ExpandDepthFirst:
		return e.pullDFS(ctx, frame)
	case ExpandBreadthFirst:
		return e.pullPrecomputed(ctx, frame, e.bfsSingleSource)
	case ExpandBreadthFirstST:
		return e.pullPrecomputed(ctx, frame, e.bfsST)
	case ExpandWeightedShortestPath:
		return e.pullPrecomputed(ctx, frame, e.dijkstra)
	default:
		return false, &RuntimeTypeError{Detail: "unknown expand-variable mode"}
	}
}

// pullPrecomputed drives the three non-DFS modes, which all compute their
// full result (zero or more paths per input tuple) up front and replay it.
func (e *ExpandVariable) pullPrecomputed(ctx *ExecutionContext, frame *Frame, compute func(ctx *ExecutionContext, frame *Frame) ([]expandResult, error)) (bool, error) {
	for {
		if e.resIdx < len(e.results) {
			r := e.results[e.resIdx]
			e.resIdx++
			frame.Set(e.VertexOut, value.Vertex(value.VertexRef{GID: r.vertex}))
			frame.Set(e.EdgeOut, value.List(r.edges))
			return true, nil
		}
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		ok, err := e.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		results, err := compute(ctx, frame)
		if err != nil {
			return false, err
		}
		e.results = results
		e.resIdx = 0
	}
}

// ---- Depth-first ----

func (e *ExpandVariable) pullDFS(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if ok, err := e.dfsExpand(ctx, frame); err != nil || ok {
			return ok, err
		}
		ok, err := e.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		src := frame.Get(e.Source)
		if src.IsNull() {
			continue
		}
		ref := src.AsVertex()
		if ref == nil {
			return false, &RuntimeTypeError{Detail: "variable expand source is not a vertex"}
		}
		lower, upper, err := e.bounds(ctx, frame, 1)
		if err != nil {
			return false, err
		}
		e.lower, e.upper = lower, upper
		e.dfsLevels = nil
		if e.dfsEdges != nil {
			e.arena.putValues(e.dfsEdges)
		}
		e.dfsEdges = e.arena.getValues()
		if e.dfsPath != nil {
			e.arena.putUint64s(e.dfsPath)
		}
		e.dfsPath = append(e.arena.getUint64s(), ref.GID)
		if e.upper > 0 {
			e.dfsLevels = append(e.dfsLevels, e.edgesFrom(ref.GID))
		}
		frame.Set(e.EdgeOut, value.List(nil))
		if e.lower == 0 {
			if !e.VertexOutBound {
				frame.Set(e.VertexOut, src)
				return true, nil
			}
			want := frame.Get(e.VertexOut).AsVertex()
			if want != nil && want.GID == ref.GID {
				return true, nil
			}
		}
	}
}

func (e *ExpandVariable) dfsExpand(ctx *ExecutionContext, frame *Frame) (bool, error) {
	src := frame.Get(e.Source).AsVertex()
	if src == nil {
		return false, nil
	}
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		for len(e.dfsLevels) > 0 && len(e.dfsLevels[len(e.dfsLevels)-1]) == 0 {
			e.dfsLevels = e.dfsLevels[:len(e.dfsLevels)-1]
		}
		if len(e.dfsLevels) == 0 {
			return false, nil
		}
		top := len(e.dfsLevels) - 1
		h := e.dfsLevels[top][0]
		e.dfsLevels[top] = e.dfsLevels[top][1:]

		if !e.matchesType(h.EdgeType()) {
			continue
		}
		// trim the carried edge/vertex path down to this depth before appending.
		if len(e.dfsEdges) > top {
			e.dfsEdges = e.dfsEdges[:top]
		}
		if len(e.dfsPath) > top+1 {
			e.dfsPath = e.dfsPath[:top+1]
		}
		dup := false
		for _, ev := range e.dfsEdges {
			if ev.AsEdge().GID == h.GID() {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		fromGID := e.dfsPath[top]
		target := h.To()
		if h.From() != fromGID {
			target = h.From()
		}
		ev := edgeValue(h, fromGID)
		ok, err := e.checkFilter(ctx, frame, e.EdgeOut, e.VertexOut, ev, target)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		e.dfsEdges = append(e.dfsEdges, ev)
		e.dfsPath = append(e.dfsPath, target)

		if e.upper > int64(len(e.dfsLevels)) {
			e.dfsLevels = append(e.dfsLevels, e.edgesFrom(target))
		}
		if e.VertexOutBound {
			want := frame.Get(e.VertexOut).AsVertex()
			if want == nil || want.GID != target {
				continue
			}
		} else {
			frame.Set(e.VertexOut, value.Vertex(value.VertexRef{GID: target}))
		}
		frame.Set(e.EdgeOut, value.List(append([]value.Value(nil), e.dfsEdges...)))
		if int64(len(e.dfsEdges)) >= e.lower {
			return true, nil
		}
	}
}

// ---- Breadth-first single source ----

func (e *ExpandVariable) bfsSingleSource(ctx *ExecutionContext, frame *Frame) ([]expandResult, error) {
	src := frame.Get(e.Source)
	if src.IsNull() {
		return nil, nil
	}
	ref := src.AsVertex()
	if ref == nil {
		return nil, &RuntimeTypeError{Detail: "variable expand source is not a vertex"}
	}
	lower, upper, err := e.bounds(ctx, frame, 1)
	if err != nil {
		return nil, err
	}
	type frontierEntry struct {
		vertex uint64
		path   []value.Value
	}
	visited := map[uint64]bool{ref.GID: true}
	frontier := []frontierEntry{{vertex: ref.GID, path: nil}}
	var results []expandResult
	if lower == 0 {
		results = append(results, expandResult{vertex: ref.GID, edges: nil})
	}
	for depth := int64(1); depth <= upper && len(frontier) > 0; depth++ {
		if err := ctx.checkAbort(); err != nil {
			return nil, err
		}
		var next []frontierEntry
		for _, cur := range frontier {
			for _, h := range e.edgesFrom(cur.vertex) {
				if !e.matchesType(h.EdgeType()) {
					continue
				}
				target := h.To()
				if h.From() != cur.vertex {
					target = h.From()
				}
				if visited[target] {
					continue
				}
				ev := edgeValue(h, cur.vertex)
				ok, err := e.checkFilter(ctx, frame, e.EdgeOut, e.VertexOut, ev, target)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				visited[target] = true
				path := append(append([]value.Value(nil), cur.path...), ev)
				next = append(next, frontierEntry{vertex: target, path: path})
				if depth >= lower {
					results = append(results, expandResult{vertex: target, edges: path})
				}
			}
		}
		frontier = next
	}
	return results, nil
}

// ---- Breadth-first, s-t (bidirectional) ----

func (e *ExpandVariable) bfsST(ctx *ExecutionContext, frame *Frame) ([]expandResult, error) {
	srcV, sinkV := frame.Get(e.Source), frame.Get(e.VertexOut)
	if srcV.IsNull() || sinkV.IsNull() {
		return nil, nil
	}
	source, sink := srcV.AsVertex(), sinkV.AsVertex()
	if source == nil || sink == nil {
		return nil, &RuntimeTypeError{Detail: "s-t expansion endpoints must be vertices"}
	}
	if source.GID == sink.GID {
		return nil, nil
	}
	lower, upper, err := e.bounds(ctx, frame, 1)
	if err != nil {
		return nil, err
	}
	if upper < 1 || lower > upper {
		return nil, nil
	}

	inEdge := map[uint64]*value.EdgeRef{source.GID: nil}
	outEdge := map[uint64]*value.EdgeRef{sink.GID: nil}
	sourceFrontier := append(e.arena.getUint64s(), source.GID)
	sinkFrontier := append(e.arena.getUint64s(), sink.GID)
	defer func() {
		e.arena.putUint64s(sourceFrontier)
		e.arena.putUint64s(sinkFrontier)
	}()

	reconstruct := func(midpoint uint64) []value.Value {
		var rev []value.Value
		last := midpoint
		for {
			ref := inEdge[last]
			if ref == nil {
				break
			}
			rev = append(rev, value.Edge(*ref))
			if ref.From == last {
				last = ref.To
			} else {
				last = ref.From
			}
		}
		var fwd []value.Value
		for i := len(rev) - 1; i >= 0; i-- {
			fwd = append(fwd, rev[i])
		}
		last = midpoint
		for {
			ref := outEdge[last]
			if ref == nil {
				break
			}
			fwd = append(fwd, value.Edge(*ref))
			if ref.From == last {
				last = ref.To
			} else {
				last = ref.From
			}
		}
		return fwd
	}

	length := int64(0)
	for {
		if err := ctx.checkAbort(); err != nil {
			return nil, err
		}
		length++
		if length > upper {
			return nil, nil
		}
		nextSource := e.arena.getUint64s()
		for _, v := range sourceFrontier {
			for _, h := range e.edgesFrom(v) {
				if !e.matchesType(h.EdgeType()) {
					continue
				}
				target := h.To()
				if h.From() != v {
					target = h.From()
				}
				if _, seen := inEdge[target]; seen {
					continue
				}
				ev := edgeValue(h, v)
				ok, err := e.checkFilter(ctx, frame, e.EdgeOut, e.VertexOut, ev, target)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				ref := ev.AsEdge()
				inEdge[target] = ref
				nextSource = append(nextSource, target)
				if _, metFromSink := outEdge[target]; metFromSink && length >= lower {
					return []expandResult{{vertex: sink.GID, edges: reconstruct(target)}}, nil
				}
			}
		}
		e.arena.putUint64s(sourceFrontier)
		sourceFrontier = nextSource
		if len(sourceFrontier) == 0 {
			return nil, nil
		}

		length++
		if length > upper {
			return nil, nil
		}
		nextSink := e.arena.getUint64s()
		for _, v := range sinkFrontier {
			for _, h := range e.edgesFrom(v) {
				if !e.matchesType(h.EdgeType()) {
					continue
				}
				target := h.To()
				if h.From() != v {
					target = h.From()
				}
				if _, seen := outEdge[target]; seen {
					continue
				}
				ev := edgeValue(h, target)
				ok, err := e.checkFilter(ctx, frame, e.EdgeOut, e.VertexOut, ev, v)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				ref := ev.AsEdge()
				outEdge[target] = ref
				nextSink = append(nextSink, target)
				if _, metFromSource := inEdge[target]; metFromSource && length >= lower {
					return []expandResult{{vertex: sink.GID, edges: reconstruct(target)}}, nil
				}
			}
		}
		e.arena.putUint64s(sinkFrontier)
		sinkFrontier = nextSink
		if len(sinkFrontier) == 0 {
			return nil, nil
		}
	}
}

// ---- Weighted shortest path (Dijkstra) ----

type dijkstraItem struct {
	vertex uint64
	dist   float64
	index  int
}

type dijkstraQueue []*dijkstraItem

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index, q[j].index = i, j }
func (q *dijkstraQueue) Push(x any) {
	item := x.(*dijkstraItem)
	item.index = len(*q)
	*q = append(*q, item)
}
func (q *dijkstraQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// dijkstra finds minimum-total-weight paths from Source. With
// VertexOutBound it returns the single path to the vertex bound at
// VertexOut (none if unreachable); otherwise it returns one path for every
// other reachable vertex, in the order each is finalized. A negative or
// non-numeric edge weight raises RuntimeTypeError.
func (e *ExpandVariable) dijkstra(ctx *ExecutionContext, frame *Frame) ([]expandResult, error) {
	srcV := frame.Get(e.Source)
	if srcV.IsNull() {
		return nil, nil
	}
	source := srcV.AsVertex()
	if source == nil {
		return nil, &RuntimeTypeError{Detail: "weighted expansion source is not a vertex"}
	}
	var sinkGID *uint64
	if e.VertexOutBound {
		sinkV := frame.Get(e.VertexOut)
		if sinkV.IsNull() {
			return nil, nil
		}
		sink := sinkV.AsVertex()
		if sink == nil {
			return nil, &RuntimeTypeError{Detail: "weighted expansion sink is not a vertex"}
		}
		sinkGID = &sink.GID
	}
	_, upper, err := e.bounds(ctx, frame, 1)
	if err != nil {
		return nil, err
	}

	dist := map[uint64]float64{source.GID: 0}
	parentEdge := map[uint64]*value.EdgeRef{}
	depth := map[uint64]int64{source.GID: 0}
	pq := &dijkstraQueue{{vertex: source.GID, dist: 0}}
	heap.Init(pq)
	visited := map[uint64]bool{}
	var results []expandResult

	for pq.Len() > 0 {
		if err := ctx.checkAbort(); err != nil {
			return nil, err
		}
		cur := heap.Pop(pq).(*dijkstraItem)
		if visited[cur.vertex] {
			continue
		}
		visited[cur.vertex] = true
		if sinkGID != nil {
			if cur.vertex == *sinkGID {
				return []expandResult{{vertex: cur.vertex, edges: e.reconstructWeighted(cur.vertex, parentEdge)}}, nil
			}
		} else if cur.vertex != source.GID {
			// no existing_node target: yield every vertex's shortest path as
			// it finalizes, mirroring the original's unrestricted sink mode.
			results = append(results, expandResult{vertex: cur.vertex, edges: e.reconstructWeighted(cur.vertex, parentEdge)})
		}
		if depth[cur.vertex] >= upper {
			continue
		}
		for _, h := range e.edgesFrom(cur.vertex) {
			if !e.matchesType(h.EdgeType()) {
				continue
			}
			target := h.To()
			if h.From() != cur.vertex {
				target = h.From()
			}
			if visited[target] {
				continue
			}
			ev := edgeValue(h, cur.vertex)
			ok, err := e.checkFilter(ctx, frame, e.EdgeOut, e.VertexOut, ev, target)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			saveEdge, saveNode := frame.Get(e.EdgeOut), frame.Get(e.VertexOut)
			frame.Set(e.EdgeOut, ev)
			frame.Set(e.VertexOut, value.Vertex(value.VertexRef{GID: target}))
			w, err := EvalWeight(&EvalContext{Acc: e.acc, View: e.View}, e.Lambda.Weight, frame)
			frame.Set(e.EdgeOut, saveEdge)
			frame.Set(e.VertexOut, saveNode)
			if err != nil {
				return nil, err
			}
			nd := cur.dist + w
			if old, seen := dist[target]; !seen || nd < old {
				dist[target] = nd
				parentEdge[target] = ev.AsEdge()
				depth[target] = depth[cur.vertex] + 1
				heap.Push(pq, &dijkstraItem{vertex: target, dist: nd})
			}
		}
	}
	if sinkGID == nil {
		return results, nil
	}
	return nil, nil
}

func (e *ExpandVariable) reconstructWeighted(target uint64, parentEdge map[uint64]*value.EdgeRef) []value.Value {
	var rev []value.Value
	cur := target
	for {
		ref, ok := parentEdge[cur]
		if !ok {
			break
		}
		rev = append(rev, value.Edge(*ref))
		if ref.From == cur {
			cur = ref.To
		} else {
			cur = ref.From
		}
	}
	out := make([]value.Value, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

func (e *ExpandVariable) Reset() {
	e.Input.Reset()
	e.releaseDFSState()
	e.dfsLevels = nil
	e.results = nil
	e.resIdx = 0
}

func (e *ExpandVariable) Shutdown() {
	e.Input.Shutdown()
	e.releaseDFSState()
}

// releaseDFSState returns dfsEdges/dfsPath to the arena they were drawn
// from, mirroring the policy every arena-allocating cursor follows: a
// slice borrowed from the pool is always returned, on Reset or Shutdown,
// regardless of how expansion ended.
func (e *ExpandVariable) releaseDFSState() {
	if e.arena == nil {
		e.dfsEdges, e.dfsPath = nil, nil
		return
	}
	if e.dfsEdges != nil {
		e.arena.putValues(e.dfsEdges)
		e.dfsEdges = nil
	}
	if e.dfsPath != nil {
		e.arena.putUint64s(e.dfsPath)
		e.dfsPath = nil
	}
}
