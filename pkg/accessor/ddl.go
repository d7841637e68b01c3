package accessor

// CreateLabelIndex creates (or backfills, if already present) a label
// index, proxying to the storage core's schema manager (spec 4.5 DDL).
func (a *Accessor) CreateLabelIndex(label string) {
	id := a.g.Labels.Intern(label)
	a.g.CreateLabelIndex(id)
}

// DropLabelIndex drops a previously created label index.
func (a *Accessor) DropLabelIndex(label string) {
	if id, ok := a.g.Labels.Lookup(label); ok {
		a.g.DropLabelIndex(id)
	}
}

// CreateLabelPropertyIndex creates (or backfills) a label+property index.
func (a *Accessor) CreateLabelPropertyIndex(label, key string) {
	labelID := a.g.Labels.Intern(label)
	keyID := a.g.PropertyKeys.Intern(key)
	a.g.CreatePropertyIndex(labelID, keyID)
}

// DropLabelPropertyIndex drops a previously created label+property index.
func (a *Accessor) DropLabelPropertyIndex(label, key string) {
	labelID, ok1 := a.g.Labels.Lookup(label)
	keyID, ok2 := a.g.PropertyKeys.Lookup(key)
	if ok1 && ok2 {
		a.g.DropPropertyIndex(labelID, keyID)
	}
}

// CreateExistenceConstraint registers a required-property constraint.
func (a *Accessor) CreateExistenceConstraint(label, key string) {
	a.g.Schema.CreateExistenceConstraint(a.g.Labels.Intern(label), a.g.PropertyKeys.Intern(key))
}

// DropExistenceConstraint removes one.
func (a *Accessor) DropExistenceConstraint(label, key string) {
	labelID, ok1 := a.g.Labels.Lookup(label)
	keyID, ok2 := a.g.PropertyKeys.Lookup(key)
	if ok1 && ok2 {
		a.g.Schema.DropExistenceConstraint(labelID, keyID)
	}
}

// CreateUniquenessConstraint registers a uniqueness constraint. A
// uniqueness constraint without a backing property index still works
// (Schema.CheckCommit falls back to a full label scan when no index
// exists), but callers normally create the index too.
func (a *Accessor) CreateUniquenessConstraint(label, key string) {
	a.g.Schema.CreateUniquenessConstraint(a.g.Labels.Intern(label), a.g.PropertyKeys.Intern(key))
}

// DropUniquenessConstraint removes one.
func (a *Accessor) DropUniquenessConstraint(label, key string) {
	labelID, ok1 := a.g.Labels.Lookup(label)
	keyID, ok2 := a.g.PropertyKeys.Lookup(key)
	if ok1 && ok2 {
		a.g.Schema.DropUniquenessConstraint(labelID, keyID)
	}
}
