package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-ledger/models"
)

func sampleChain() []*models.Block {
	genesis := models.NewGenesisBlock(1700000000000)
	genesis.Hash = genesis.CalculateHash()
	vote := &models.Block{
		Index:     1,
		Timestamp: 1700000001000,
		Vote: models.Vote{
			CandidateID: "C001",
			VoterID:     "V1",
			Signature:   models.VoteSignature{Signature: "sig", Timestamp: 1700000001000, PublicKey: "fp"},
		},
		PreviousHash: genesis.Hash,
		Nonce:        12,
	}
	vote.Hash = vote.CalculateHash()
	return []*models.Block{genesis, vote}
}

func openAll(t *testing.T) map[Backend]ChainStore {
	t.Helper()
	stores := make(map[Backend]ChainStore)
	for _, backend := range Backends {
		s, err := Open(backend, t.TempDir())
		require.NoError(t, err, "opening %s", backend)
		t.Cleanup(func() { s.Close() })
		stores[backend] = s
	}
	return stores
}

func TestStores_EmptySlot(t *testing.T) {
	for backend, s := range openAll(t) {
		t.Run(string(backend), func(t *testing.T) {
			blocks, err := s.Load()
			require.NoError(t, err)
			assert.Nil(t, blocks)

			raw, err := s.LoadRaw()
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestStores_SaveLoad(t *testing.T) {
	chain := sampleChain()
	for backend, s := range openAll(t) {
		t.Run(string(backend), func(t *testing.T) {
			require.NoError(t, s.Save(chain))

			loaded, err := s.Load()
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.Equal(t, *chain[0], *loaded[0])
			assert.Equal(t, *chain[1], *loaded[1])
			assert.Equal(t, loaded[1].Hash, loaded[1].CalculateHash())
		})
	}
}

func TestStores_SaveReplacesWholeChain(t *testing.T) {
	chain := sampleChain()
	for backend, s := range openAll(t) {
		t.Run(string(backend), func(t *testing.T) {
			require.NoError(t, s.Save(chain))
			require.NoError(t, s.Save(chain[:1]))

			loaded, err := s.Load()
			require.NoError(t, err)
			assert.Len(t, loaded, 1)
		})
	}
}

func TestJSONStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Save(sampleChain()))

	s2, err := NewJSONStore(dir)
	require.NoError(t, err)
	loaded, err := s2.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	_, err = os.Stat(s2.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not be left behind")
}

func TestJSONStore_FileLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleChain()))

	data, err := os.ReadFile(filepath.Join(dir, "blockchain.json"))
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "["))
	assert.Contains(t, content, `"previousHash":"0"`)
	assert.Contains(t, content, `"candidateId":"C001"`)
}

func TestJSONStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))

	_, err = s.Load()
	assert.ErrorIs(t, err, ErrCorrupt)

	raw, err := s.LoadRaw()
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s1, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(sampleChain()))
	require.NoError(t, s1.Close())

	s2, err := NewBoltStore(path)
	require.NoError(t, err)
	defer s2.Close()
	loaded, err := s2.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(sampleChain()))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()
	loaded, err := s2.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestMemoryStore_NullBlockIsCorrupt(t *testing.T) {
	s := NewMemoryStore()
	s.SetRaw([]byte(`[null]`))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestMemoryStore_NoAliasing(t *testing.T) {
	s := NewMemoryStore()
	chain := sampleChain()
	require.NoError(t, s.Save(chain))

	chain[1].Vote.CandidateID = "changed"
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "C001", loaded[1].Vote.CandidateID)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("tape", t.TempDir())
	assert.Error(t, err)
}

func TestArchive_SaveAndLoad(t *testing.T) {
	a, err := NewArchive(t.TempDir(), 0)
	require.NoError(t, err)

	path, err := a.SaveChain("session", sampleChain())
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "chain_session_")

	loaded, err := a.LoadChain(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	paths, err := a.List("session")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestArchive_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, 2)
	require.NoError(t, err)

	// Pre-seed older snapshots so the test does not depend on wall-clock spacing.
	for _, ts := range []string{"20240101000000.000", "20240102000000.000", "20240103000000.000"} {
		name := filepath.Join(dir, "chain_discarded_"+ts+".json")
		require.NoError(t, os.WriteFile(name, []byte("[]"), 0644))
	}

	newest, err := a.SaveRaw("discarded", []byte("garbage"))
	require.NoError(t, err)

	paths, err := a.List("discarded")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, newest, paths[1])
	assert.Contains(t, paths[0], "20240103000000.000")
}

func TestArchive_RejectsBadReason(t *testing.T) {
	a, err := NewArchive(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = a.SaveRaw("bad_reason", []byte("x"))
	assert.Error(t, err)
	_, err = a.SaveRaw("", []byte("x"))
	assert.Error(t, err)
}
