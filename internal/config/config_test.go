package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

type sample struct {
	Value string `json:"value"`
}

func writeJSON(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadPlain(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "foo.json", `{"value":"prod"}`)

	s := New(dir, false)
	var got sample
	require.NoError(t, s.Load("foo", &got))
	require.Equal(t, "prod", got.Value)
}

func TestDevOverlayPreferred(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "foo.json", `{"value":"prod"}`)
	writeJSON(t, dir, "dev_foo.json", `{"value":"dev"}`)

	s := New(dir, true)
	var got sample
	require.NoError(t, s.Load("foo", &got))
	require.Equal(t, "dev", got.Value)
}

func TestDevOverlayFallsBackWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "foo.json", `{"value":"prod"}`)

	s := New(dir, true)
	var got sample
	require.NoError(t, s.Load("foo", &got))
	require.Equal(t, "prod", got.Value)
}

func TestMissingRequired(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, false)
	var got sample
	err := s.Load("missing", &got)
	require.ErrorIs(t, err, yerrors.ErrConfigNotFound)
}

func TestMissingOptional(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, false)
	var got sample
	require.NoError(t, s.LoadOptional("missing", &got))
	require.Equal(t, sample{}, got)
}

func TestMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "bad.json", `{not json`)

	s := New(dir, false)
	var got sample
	err := s.Load("bad", &got)
	require.ErrorIs(t, err, yerrors.ErrConfigParse)
}

func TestLoadPathBypassesLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "somewhere-else.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"value":"direct"}`), 0o644))

	s := New(dir, true)
	var got sample
	require.NoError(t, s.LoadPath(path, &got))
	require.Equal(t, "direct", got.Value)
}
