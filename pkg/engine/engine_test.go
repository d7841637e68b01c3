package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/config"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Listen = ""
	cfg.Durability.SnapshotInterval = time.Hour
	return cfg
}

func TestOpenCreatesDataLayout(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	require.DirExists(t, filepath.Join(cfg.DataDir, "snapshots"))
	require.DirExists(t, filepath.Join(cfg.DataDir, "wal"))
	require.DirExists(t, filepath.Join(cfg.DataDir, "auth"))
	require.Equal(t, config.RoleMain, e.Role())
}

func TestSessionCommitPersistsVertex(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	s := e.BeginWrite()
	h, err := s.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, s.SetVertexLabel(h.GID(), "Person"))
	_, err = s.Commit()
	require.NoError(t, err)

	require.Equal(t, 1, e.Graph().VertexCount())
	v := e.Graph().Vertex(h.GID())
	require.NotNil(t, v)
}

func TestSessionAbortDiscardsChanges(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	s := e.BeginWrite()
	_, err = s.CreateVertex()
	require.NoError(t, err)
	s.Abort()

	r := accessor.New(e.Graph())
	defer r.Abort()
	require.Len(t, r.Vertices(mvcc.OLD, false, 0), 0)
}

func TestCreateEdgeBetweenVertices(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	s := e.BeginWrite()
	a, err := s.CreateVertex()
	require.NoError(t, err)
	b, err := s.CreateVertex()
	require.NoError(t, err)
	edge, err := s.CreateEdge(a.GID(), b.GID(), "KNOWS")
	require.NoError(t, err)
	require.NotZero(t, edge.GID())
	_, err = s.Commit()
	require.NoError(t, err)

	require.Equal(t, 1, e.Graph().EdgeCount())
}

func TestDetachDeleteVertexRemovesIncidentEdges(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	s := e.BeginWrite()
	a, err := s.CreateVertex()
	require.NoError(t, err)
	b, err := s.CreateVertex()
	require.NoError(t, err)
	edge, err := s.CreateEdge(a.GID(), b.GID(), "KNOWS")
	require.NoError(t, err)
	_, err = s.Commit()
	require.NoError(t, err)

	s2 := e.BeginWrite()
	require.NoError(t, s2.DetachDeleteVertex(a.GID()))
	_, err = s2.Commit()
	require.NoError(t, err)

	r := accessor.New(e.Graph())
	defer r.Abort()
	_, err = r.FindEdge(edge.GID(), mvcc.OLD)
	require.ErrorIs(t, err, storage.ErrNonexistentObject)
	require.Len(t, r.Vertices(mvcc.OLD, false, 0), 1)
}

func TestCreateAndDropLabelIndex(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.CreateLabelIndex("Person"))
	require.Len(t, e.Indexes(), 1)

	require.NoError(t, e.DropLabelIndex("Person"))
	require.Len(t, e.Indexes(), 0)
}

func TestSnapshotAndRecoverRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, e.CreateLabelIndex("Person"))

	s := e.BeginWrite()
	h, err := s.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, s.SetVertexLabel(h.GID(), "Person"))
	_, err = s.Commit()
	require.NoError(t, err)

	path, err := e.Snapshot()
	require.NoError(t, err)
	require.FileExists(t, path)
	require.NoError(t, e.Close())

	e2, err := Open(cfg, nil)
	require.NoError(t, err)
	defer e2.Close()

	require.Equal(t, 1, e2.Graph().VertexCount())
	require.Len(t, e2.Indexes(), 1)
}

func TestOpenReplicaRequiresPeerAddr(t *testing.T) {
	cfg := testConfig(t)
	cfg.Role = config.RoleReplica
	cfg.Replication.PeerAddr = ""

	_, err := Open(cfg, nil)
	require.Error(t, err)
}

func TestMainReplicaRoleWiring(t *testing.T) {
	mainCfg := testConfig(t)
	mainCfg.Listen = "127.0.0.1:0"
	main, err := Open(mainCfg, nil)
	require.NoError(t, err)
	defer main.Close()
	require.NotNil(t, main.Replicas())
}
