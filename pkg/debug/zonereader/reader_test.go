package zonereader

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zonedb/pkg/config"
	"zonedb/pkg/engine"
	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

func buildDB(t *testing.T, records int) (*config.Config, map[word.Word][]byte) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Start, cfg.Length = 4, 3
	cfg.PasswordCost = 4

	s, err := engine.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Init(cfg.DBDesc()))
	want := map[word.Word][]byte{}
	for i := 1; i <= records; i++ {
		k := word.Word(i * 7)
		want[k] = bytes.Repeat([]byte{byte(i)}, i%50)
		require.NoError(t, s.Put(k, want[k]))
	}
	require.NoError(t, s.Close())
	return cfg, want
}

func load(t *testing.T, cfg *config.Config) (*Snapshot, error) {
	t.Helper()
	return New(primitives.Filepath(cfg.DataDir), cfg.DBDesc()).Load(context.Background())
}

func TestLoad_ReadsEveryZone(t *testing.T) {
	cfg, want := buildDB(t, 120)
	snap, err := load(t, cfg)
	require.NoError(t, err)

	require.Len(t, snap.Zones, 3)
	assert.Equal(t, "000004", snap.Zones[0].File)
	assert.Equal(t, "000006", snap.Zones[2].File)

	recs, err := snap.Records()
	require.NoError(t, err)
	require.Len(t, recs, len(want))
	for i, r := range recs {
		if i > 0 {
			assert.Less(t, recs[i-1].Key, r.Key)
		}
		data, err := snap.Payload(r.Handle)
		require.NoError(t, err)
		assert.Equal(t, want[r.Key], data)
	}

	table, err := snap.FreeTable()
	require.NoError(t, err)
	for i, z := range snap.Zones {
		assert.Equal(t, z.Control.FreeWords(), table[i])
	}
}

func TestLoad_FingerprintsAreStable(t *testing.T) {
	cfg, _ := buildDB(t, 10)
	a, err := load(t, cfg)
	require.NoError(t, err)
	b, err := load(t, cfg)
	require.NoError(t, err)
	for i := range a.Zones {
		assert.Equal(t, a.Zones[i].Fingerprint, b.Zones[i].Fingerprint)
	}
	assert.NotEqual(t, a.Zones[0].Fingerprint, a.Zones[1].Fingerprint)
}

func TestLoad_ReportsCorruption(t *testing.T) {
	cfg, _ := buildDB(t, 10)
	dir := primitives.Filepath(cfg.DataDir)
	path := dir.ZoneFile(cfg.DBDesc().Abs(1)).String()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[5] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))
	_, err = load(t, cfg)
	assert.ErrorIs(t, err, dberror.ErrPageCorrupted)

	require.NoError(t, os.Remove(path))
	_, err = load(t, cfg)
	assert.ErrorIs(t, err, dberror.ErrIO)
}

func TestLoad_ReportsBadRoot(t *testing.T) {
	cfg, _ := buildDB(t, 0)
	st, err := zone.NewDirStore(primitives.Filepath(cfg.DataDir))
	require.NoError(t, err)
	abs := cfg.DBDesc().Abs(0)
	z, err := st.ReadZone(abs)
	require.NoError(t, err)

	// the root is the first extent of zone 0; give it a sibling link
	root := z.Descriptors()[0]
	z[root.Start] = word.MetaHeader{Next: word.NewHandle(1, 1)}.Pack()
	require.NoError(t, st.WriteZone(abs, z))

	_, err = load(t, cfg)
	assert.ErrorIs(t, err, dberror.ErrBadCatalog)
}

func TestWriteText(t *testing.T) {
	cfg, _ := buildDB(t, 3)
	snap, err := load(t, cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, snap.WriteText(&out))
	assert.Contains(t, out.String(), "zone 000004")
	assert.Contains(t, out.String(), "zone 000006")
	assert.Contains(t, out.String(), "fingerprint")
}

func TestExportImportRestore(t *testing.T) {
	cfg, want := buildDB(t, 40)
	snap, err := load(t, cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snap.Export(&buf))
	back, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.DB, back.DB)
	assert.Equal(t, snap.Zones, back.Zones)

	mem := zone.NewMemStore()
	require.NoError(t, back.Restore(mem))
	s := engine.New(mem, engine.Options{})
	require.NoError(t, s.OpenDB(cfg.DBDesc()))
	for k, v := range want {
		got, err := s.Fetch(k)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err = Import(bytes.NewReader([]byte("not a snapshot")))
	assert.Error(t, err)
}
