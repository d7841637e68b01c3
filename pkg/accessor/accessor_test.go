package accessor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

func TestCreateVertexCommitThenFind(t *testing.T) {
	g := storage.NewGraph()
	a := New(g)
	vh, err := a.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, vh.SetLabel("Person"))
	require.NoError(t, vh.SetProperty("name", value.Str("ada")))
	_, err = a.Commit()
	require.NoError(t, err)

	b := New(g)
	found, err := b.FindVertex(vh.GID(), mvcc.OLD)
	require.NoError(t, err)
	labels, err := found.Labels(mvcc.OLD)
	require.NoError(t, err)
	require.Contains(t, labels, "Person")
	name, err := found.Property(mvcc.OLD, "name")
	require.NoError(t, err)
	require.Equal(t, value.Str("ada"), name)
}

func TestDeleteVertexWithEdgesRequiresDetach(t *testing.T) {
	g := storage.NewGraph()
	a := New(g)
	v1, err := a.CreateVertex()
	require.NoError(t, err)
	v2, err := a.CreateVertex()
	require.NoError(t, err)
	edgeType := g.EdgeTypes.Intern("KNOWS")
	_, err = a.CreateEdge(v1.GID(), v2.GID(), edgeType)
	require.NoError(t, err)

	err = a.DeleteVertex(v1.GID())
	require.ErrorIs(t, err, storage.ErrVertexHasEdges)

	err = a.DetachDeleteVertex(v1.GID())
	require.NoError(t, err)
}

func TestFindNonexistentVertex(t *testing.T) {
	g := storage.NewGraph()
	a := New(g)
	_, err := a.FindVertex(999, mvcc.NEW)
	require.ErrorIs(t, err, storage.ErrNonexistentObject)
}

func TestUniquenessConstraintViolationAtCommit(t *testing.T) {
	g := storage.NewGraph()
	a := New(g)
	a.CreateUniquenessConstraint("Person", "email")

	v1, err := a.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, v1.SetLabel("Person"))
	require.NoError(t, v1.SetProperty("email", value.Str("x@example.com")))
	v2, err := a.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, v2.SetLabel("Person"))
	require.NoError(t, v2.SetProperty("email", value.Str("x@example.com")))

	_, err = a.Commit()
	require.Error(t, err)
	var cve *storage.ConstraintViolationError
	require.ErrorAs(t, err, &cve)
	require.Equal(t, "uniqueness", cve.Kind)
}

func TestConcurrentWriteSameVertexConflicts(t *testing.T) {
	g := storage.NewGraph()
	setup := New(g)
	vh, err := setup.CreateVertex()
	require.NoError(t, err)
	_, err = setup.Commit()
	require.NoError(t, err)

	a1 := New(g)
	a2 := New(g)
	h1, err := a1.FindVertex(vh.GID(), mvcc.NEW)
	require.NoError(t, err)
	require.NoError(t, h1.SetProperty("x", value.Int(1)))

	h2, err := a2.FindVertex(vh.GID(), mvcc.NEW)
	require.NoError(t, err)
	err = h2.SetProperty("x", value.Int(2))
	require.ErrorIs(t, err, storage.ErrSerialization)
}
