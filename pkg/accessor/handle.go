package accessor

import (
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

// VertexHandle is a transaction-scoped view of one vertex.
type VertexHandle struct {
	a   *Accessor
	gid uint64
}

func (h *VertexHandle) GID() uint64 { return h.gid }

// Labels returns every label currently set on the vertex under view.
func (h *VertexHandle) Labels(view mvcc.View) ([]string, error) {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return nil, storage.ErrNonexistentObject
	}
	set := make(map[string]bool)
	for d := v.Versions.Head(); d != nil; d = d.Prev {
		if !deltaVisible(h.a, d, view) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetVertexLabel:
			lp := d.Payload.(*mvcc.LabelPayload)
			if _, seen := set[lp.Label]; !seen {
				set[lp.Label] = true
			}
		case mvcc.OpRemoveVertexLabel:
			lp := d.Payload.(*mvcc.LabelPayload)
			if _, seen := set[lp.Label]; !seen {
				set[lp.Label] = false
			}
		}
	}
	var out []string
	for name, present := range set {
		if present {
			out = append(out, name)
		}
	}
	return out, nil
}

// SetLabel adds label to the vertex, speculatively populating the label
// index (spec I4).
func (h *VertexHandle) SetLabel(label string) error {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	if err := h.a.g.Txns.ClaimWrite(h.a.Txn, h.gid); err != nil {
		return storage.ErrSerialization
	}
	v.Versions.Append(mvcc.OpSetVertexLabel, &mvcc.LabelPayload{Label: label}, h.a.Txn)
	id := h.a.g.Labels.Intern(label)
	h.a.g.CreateLabelIndexIfTracked(id, h.gid)
	return nil
}

// RemoveLabel removes label from the vertex.
func (h *VertexHandle) RemoveLabel(label string) error {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	if err := h.a.g.Txns.ClaimWrite(h.a.Txn, h.gid); err != nil {
		return storage.ErrSerialization
	}
	v.Versions.Append(mvcc.OpRemoveVertexLabel, &mvcc.LabelPayload{Label: label}, h.a.Txn)
	return nil
}

// PropertyKeys returns every key currently set on the vertex under view,
// walking the delta chain the same way Labels does (SetProperties'
// REPLACE semantics need this to find keys the new map doesn't mention).
func (h *VertexHandle) PropertyKeys(view mvcc.View) ([]string, error) {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return nil, storage.ErrNonexistentObject
	}
	set := make(map[string]bool)
	for d := v.Versions.Head(); d != nil; d = d.Prev {
		if !deltaVisible(h.a, d, view) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := set[pp.Key]; !seen {
				set[pp.Key] = true
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := set[pp.Key]; !seen {
				set[pp.Key] = false
			}
		}
	}
	var out []string
	for key, present := range set {
		if present {
			out = append(out, key)
		}
	}
	return out, nil
}

// Property returns the vertex's value for key under view, or the null
// value if unset.
func (h *VertexHandle) Property(view mvcc.View, key string) (value.Value, error) {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return value.Value{}, storage.ErrNonexistentObject
	}
	for d := v.Versions.Head(); d != nil; d = d.Prev {
		if !deltaVisible(h.a, d, view) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if pp.Key == key {
				val, _ := pp.Value.(value.Value)
				return val, nil
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if pp.Key == key {
				return value.Null(), nil
			}
		}
	}
	return value.Null(), nil
}

// SetProperty sets key=val on the vertex, speculatively updating any
// property index defined over the vertex's labels (spec I4).
func (h *VertexHandle) SetProperty(key string, val value.Value) error {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	if err := h.a.g.Txns.ClaimWrite(h.a.Txn, h.gid); err != nil {
		return storage.ErrSerialization
	}
	v.Versions.Append(mvcc.OpSetProperty, &mvcc.PropertyPayload{Key: key, Value: val}, h.a.Txn)

	keyID := h.a.g.PropertyKeys.Intern(key)
	labels, _ := h.Labels(mvcc.NEW)
	for _, l := range labels {
		labelID, ok := h.a.g.Labels.Lookup(l)
		if !ok {
			continue
		}
		if pi := h.a.g.PropertyIndexFor(labelID, keyID); pi != nil {
			pi.Insert(labelID, keyID, val, h.gid)
		}
	}
	return nil
}

// RemoveProperty unsets key.
func (h *VertexHandle) RemoveProperty(key string) error {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	if err := h.a.g.Txns.ClaimWrite(h.a.Txn, h.gid); err != nil {
		return storage.ErrSerialization
	}
	v.Versions.Append(mvcc.OpRemoveProperty, &mvcc.PropertyPayload{Key: key}, h.a.Txn)
	return nil
}

// OutEdges/InEdges return every incident edge handle visible under view,
// matching an optional edge-type filter (typeSet) and direction; Expand
// uses these directly.
func (h *VertexHandle) OutEdges(view mvcc.View) []*EdgeHandle {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return nil
	}
	var out []*EdgeHandle
	for _, e := range v.OutEdges() {
		if _, d := h.a.g.VisibleEdge(e.GID, h.a.Txn, view); d != nil {
			out = append(out, &EdgeHandle{a: h.a, gid: e.GID})
		}
	}
	return out
}

func (h *VertexHandle) InEdges(view mvcc.View) []*EdgeHandle {
	v := h.a.g.Vertex(h.gid)
	if v == nil {
		return nil
	}
	var out []*EdgeHandle
	for _, e := range v.InEdges() {
		if _, d := h.a.g.VisibleEdge(e.GID, h.a.Txn, view); d != nil {
			out = append(out, &EdgeHandle{a: h.a, gid: e.GID})
		}
	}
	return out
}

// EdgeHandle is a transaction-scoped view of one edge.
type EdgeHandle struct {
	a   *Accessor
	gid uint64
}

func (h *EdgeHandle) GID() uint64 { return h.gid }

func (h *EdgeHandle) endpoints() (from, to uint64, edgeType storage.NameID, ok bool) {
	e := h.a.g.Edge(h.gid)
	if e == nil {
		return 0, 0, 0, false
	}
	return e.FromGID, e.ToGID, e.EdgeType, true
}

func (h *EdgeHandle) From() uint64 { f, _, _, _ := h.endpoints(); return f }
func (h *EdgeHandle) To() uint64   { _, t, _, _ := h.endpoints(); return t }
func (h *EdgeHandle) EdgeType() storage.NameID { _, _, et, _ := h.endpoints(); return et }

// PropertyKeys mirrors VertexHandle.PropertyKeys for edges.
func (h *EdgeHandle) PropertyKeys(view mvcc.View) ([]string, error) {
	e := h.a.g.Edge(h.gid)
	if e == nil {
		return nil, storage.ErrNonexistentObject
	}
	set := make(map[string]bool)
	for d := e.Versions.Head(); d != nil; d = d.Prev {
		if !deltaVisible(h.a, d, view) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := set[pp.Key]; !seen {
				set[pp.Key] = true
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := set[pp.Key]; !seen {
				set[pp.Key] = false
			}
		}
	}
	var out []string
	for key, present := range set {
		if present {
			out = append(out, key)
		}
	}
	return out, nil
}

// Property/SetProperty/RemoveProperty mirror VertexHandle's. SetProperty and
// RemoveProperty return ErrPropertiesDisabled when edge-property storage is
// off; Property reads without that check.
func (h *EdgeHandle) Property(view mvcc.View, key string) (value.Value, error) {
	e := h.a.g.Edge(h.gid)
	if e == nil {
		return value.Value{}, storage.ErrNonexistentObject
	}
	for d := e.Versions.Head(); d != nil; d = d.Prev {
		if !deltaVisible(h.a, d, view) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if pp.Key == key {
				val, _ := pp.Value.(value.Value)
				return val, nil
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if pp.Key == key {
				return value.Null(), nil
			}
		}
	}
	return value.Null(), nil
}

func (h *EdgeHandle) SetProperty(key string, val value.Value) error {
	if !h.a.g.EdgePropertiesEnabled() {
		return storage.ErrPropertiesDisabled
	}
	e := h.a.g.Edge(h.gid)
	if e == nil {
		return storage.ErrNonexistentObject
	}
	if err := h.a.g.Txns.ClaimWrite(h.a.Txn, h.gid); err != nil {
		return storage.ErrSerialization
	}
	e.Versions.Append(mvcc.OpSetProperty, &mvcc.PropertyPayload{Key: key, Value: val}, h.a.Txn)
	return nil
}

func (h *EdgeHandle) RemoveProperty(key string) error {
	if !h.a.g.EdgePropertiesEnabled() {
		return storage.ErrPropertiesDisabled
	}
	e := h.a.g.Edge(h.gid)
	if e == nil {
		return storage.ErrNonexistentObject
	}
	if err := h.a.g.Txns.ClaimWrite(h.a.Txn, h.gid); err != nil {
		return storage.ErrSerialization
	}
	e.Versions.Append(mvcc.OpRemoveProperty, &mvcc.PropertyPayload{Key: key}, h.a.Txn)
	return nil
}

// deltaVisible is a small adapter so handles can reuse VersionList.Visible
// head-by-head rather than just at the head, since label/property lookups
// need to fold every visible delta, not only the newest.
func deltaVisible(a *Accessor, d *mvcc.Delta, view mvcc.View) bool {
	return mvcc.StampVisible(d.Creator, d.CreatedAtCmd, a.Txn, view) &&
		!(d.Deletor != nil && mvcc.StampVisible(d.Deletor, d.DeletedAtCmd, a.Txn, view))
}
