package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(0)

	require.NoError(t, m.SetItem("a", "1"))
	require.NoError(t, m.SetItem("b", "2"))

	v, ok := m.GetItem("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.Equal(t, 2, m.Len())

	m.RemoveItem("a")
	_, ok = m.GetItem("a")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())

	// idempotent remove
	m.RemoveItem("a")
	require.Equal(t, 1, m.Len())
}

func TestMemoryQuota(t *testing.T) {
	m := NewMemory(10)

	require.NoError(t, m.SetItem("k", "12345"))                    // 6 bytes
	require.ErrorIs(t, m.SetItem("q", "123456789"), ErrQuotaExceeded)

	// Overwriting the existing key within budget still works.
	require.NoError(t, m.SetItem("k", "123"))

	// Removing frees budget.
	m.RemoveItem("k")
	require.NoError(t, m.SetItem("q", "12345678"))
}

func TestMemoryKeyAt(t *testing.T) {
	m := NewMemory(0)
	require.NoError(t, m.SetItem("a", "1"))
	require.NoError(t, m.SetItem("b", "2"))

	k0, ok := m.KeyAt(0)
	require.True(t, ok)
	require.Equal(t, "a", k0)

	_, ok = m.KeyAt(2)
	require.False(t, ok)

	require.ElementsMatch(t, []string{"a", "b"}, Keys(m))
}

func TestFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetItem("app:/orders?id=1", `{"data":1}`))
	require.NoError(t, f.SetItem("app:/orders?id=2", `{"data":2}`))
	f.RemoveItem("app:/orders?id=2")

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())

	v, ok := reopened.GetItem("app:/orders?id=1")
	require.True(t, ok)
	require.Equal(t, `{"data":1}`, v)
}

func TestFileCorruptedSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.Equal(t, 0, f.Len())
}

func TestNullAlwaysMisses(t *testing.T) {
	n := NewNull()
	require.NoError(t, n.SetItem("a", "1"))
	_, ok := n.GetItem("a")
	require.False(t, ok)
	require.Equal(t, 0, n.Len())
}
