package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRegistryFlattensMethodsAcrossModules(t *testing.T) {
	reg := buildRegistry(map[string]realmConfig{
		"smartseq3": {Kind: "smartseq3", Methods: map[string]bool{"SmartSeq 3": false}},
		"tenx":      {Kind: "tenx", Methods: map[string]bool{"10X": true}},
	})

	mod, ok := reg.Resolve("SmartSeq 3")
	require.True(t, ok)
	require.Equal(t, "smartseq3", mod)

	mod, ok = reg.Resolve("10X Genomics 3'v3")
	require.True(t, ok)
	require.Equal(t, "tenx", mod)

	_, ok = reg.Resolve("Unregistered method")
	require.False(t, ok)
}

func TestHPCConfigFromAppliesDefaults(t *testing.T) {
	cfg := hpcConfigFrom(hpcJSONConfig{SubmitCommand: []string{"sbatch"}})
	require.Equal(t, []string{"sbatch"}, cfg.SubmitCommand)
	require.Equal(t, int64(8), int64(cfg.CommandTimeout.Seconds()))
	require.Equal(t, int64(30), int64(cfg.PollInterval.Seconds()))
}

func TestSecondsOrDefault(t *testing.T) {
	require.Equal(t, int64(8), int64(secondsOrDefault(0, 8).Seconds()))
	require.Equal(t, int64(5), int64(secondsOrDefault(5, 8).Seconds()))
}
