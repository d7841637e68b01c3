package engine

import "github.com/arborgraph/arbor/pkg/durability"

// CreateLabelIndex builds a label index over label and appends a
// RecBuildIndex DDL record to the WAL. Recovery does not replay that record;
// the index is restored on Recover only from a snapshot that lists it.
func (e *Engine) CreateLabelIndex(label string) error {
	labelID := e.g.Labels.Intern(label)
	e.g.CreateLabelIndex(labelID)
	return e.recordIndexDDL(durability.RecBuildIndex, durability.IndexDef{Label: label})
}

// DropLabelIndex removes a label index.
func (e *Engine) DropLabelIndex(label string) error {
	labelID := e.g.Labels.Intern(label)
	e.g.DropLabelIndex(labelID)
	return e.recordIndexDDL(durability.RecDropIndex, durability.IndexDef{Label: label})
}

// CreatePropertyIndex builds a label+property index.
func (e *Engine) CreatePropertyIndex(label, property string) error {
	labelID := e.g.Labels.Intern(label)
	keyID := e.g.PropertyKeys.Intern(property)
	e.g.CreatePropertyIndex(labelID, keyID)
	return e.recordIndexDDL(durability.RecBuildIndex, durability.IndexDef{Label: label, Property: property})
}

// DropPropertyIndex removes a label+property index.
func (e *Engine) DropPropertyIndex(label, property string) error {
	labelID := e.g.Labels.Intern(label)
	keyID := e.g.PropertyKeys.Intern(property)
	e.g.DropPropertyIndex(labelID, keyID)
	return e.recordIndexDDL(durability.RecDropIndex, durability.IndexDef{Label: label, Property: property})
}

// Indexes returns every currently tracked index definition, the set the
// next snapshot will carry.
func (e *Engine) Indexes() []durability.IndexDef {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	return append([]durability.IndexDef(nil), e.indexes...)
}

// recordIndexDDL appends a RecBuildIndex/RecDropIndex WAL record (outside
// any transaction's delta sequence, txn id 0, matching the WAL's DDL
// record vocabulary in spec 4.7) and updates the in-memory registry
// takeSnapshot reads from.
func (e *Engine) recordIndexDDL(rt durability.RecordType, def durability.IndexDef) error {
	if err := e.wal.Append(rt, 0, def); err != nil {
		return err
	}
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	switch rt {
	case durability.RecBuildIndex:
		e.indexes = append(e.indexes, def)
	case durability.RecDropIndex:
		out := e.indexes[:0]
		for _, d := range e.indexes {
			if d != def {
				out = append(out, d)
			}
		}
		e.indexes = out
	}
	return nil
}
