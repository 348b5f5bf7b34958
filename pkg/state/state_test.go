package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

func TestParseRoundTrip(t *testing.T) {
	st, err := Parse([]byte(`{"bookmarks":{"jobs":{"ModifyIndex":1042}}}`))
	require.NoError(t, err)

	value, ok := st.ReplicationValue("jobs", "ModifyIndex")
	require.True(t, ok)
	assert.Equal(t, uint64(1042), value)
}

func TestParseEmptyDocumentIsFirstRun(t *testing.T) {
	st, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, st.Bookmarks)

	st, err = Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, st.Bookmarks)
}

func TestParseCorruptDocument(t *testing.T) {
	st, err := Parse([]byte(`{"bookmarks":`))
	require.Error(t, err)
	assert.Nil(t, st)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeStateCorruption))
}

func TestLoadFileMissingIsFirstRun(t *testing.T) {
	st, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, st.Bookmarks)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bookmarks":{"nodes":{"completed":true}}}`), 0o600))

	st, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, true, st.Bookmark("nodes")["completed"])
}

func TestSetBookmarkReplaces(t *testing.T) {
	st := New()
	st.SetBookmark("jobs", Bookmark{"ModifyIndex": uint64(5)})
	st.SetBookmark("jobs", Bookmark{"ModifyIndex": uint64(9)})

	value, ok := st.ReplicationValue("jobs", "ModifyIndex")
	require.True(t, ok)
	assert.Equal(t, uint64(9), value)
}

func TestReplicationValueMissing(t *testing.T) {
	st := New()

	_, ok := st.ReplicationValue("jobs", "ModifyIndex")
	assert.False(t, ok)

	st.SetBookmark("jobs", Bookmark{"other": 1})
	_, ok = st.ReplicationValue("jobs", "ModifyIndex")
	assert.False(t, ok)
}

func TestCoerceIndex(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want uint64
		ok   bool
	}{
		{"uint64", uint64(7), 7, true},
		{"int", 7, 7, true},
		{"int64", int64(7), 7, true},
		{"float64 from JSON", float64(7), 7, true},
		{"numeric string", "7", 7, true},
		{"negative", -1, 0, false},
		{"non-numeric string", "latest", 0, false},
		{"nil", nil, 0, false},
		{"object", map[string]interface{}{}, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceIndex(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
