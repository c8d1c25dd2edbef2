package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveExactMatch(t *testing.T) {
	r := New(map[string]Entry{
		"SmartSeq 3": {Module: "smartseq3"},
		"10X":        {Module: "tenx", Prefix: true},
	})

	mod, ok := r.Resolve("SmartSeq 3")
	require.True(t, ok)
	require.Equal(t, "smartseq3", mod)
}

func TestResolvePrefixMatch(t *testing.T) {
	r := New(map[string]Entry{
		"10X": {Module: "tenx", Prefix: true},
	})

	mod, ok := r.Resolve("10X Genomics 3'v3")
	require.True(t, ok)
	require.Equal(t, "tenx", mod)
}

func TestResolveUnknownMethod(t *testing.T) {
	r := New(map[string]Entry{
		"SmartSeq 3": {Module: "smartseq3"},
	})

	_, ok := r.Resolve("Totally Unknown Method")
	require.False(t, ok)
}

func TestResolveExactBeatsPrefix(t *testing.T) {
	r := New(map[string]Entry{
		"10X":    {Module: "tenx-prefix", Prefix: true},
		"10X Go": {Module: "tenx-exact"},
	})

	mod, ok := r.Resolve("10X Go")
	require.True(t, ok)
	require.Equal(t, "tenx-exact", mod)
}
