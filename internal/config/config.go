// Package config implements ConfigStore: a read-only view over
// JSON configuration files, with a dev-variant overlay preferred in
// development mode and falling back to the base file when absent.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// Store loads named JSON configuration documents from a directory.
type Store struct {
	dir     string
	devMode bool
}

// New returns a Store rooted at dir. devMode controls whether the
// dev_<name>.json overlay is consulted before name.json.
func New(dir string, devMode bool) *Store {
	return &Store{dir: dir, devMode: devMode}
}

// Load reads the named logical config (e.g. "db_config" -> db_config.json)
// and unmarshals it into out, which must be a pointer. When dev mode is
// set, dev_<name>.json is tried first and used if present. Missing
// required configs return ErrConfigNotFound; malformed JSON returns
// ErrConfigParse.
func (s *Store) Load(name string, out interface{}) error {
	return s.load(name, out, true)
}

// LoadOptional behaves like Load but returns nil (leaving out
// untouched) instead of ErrConfigNotFound when no file exists.
func (s *Store) LoadOptional(name string, out interface{}) error {
	return s.load(name, out, false)
}

func (s *Store) load(name string, out interface{}, required bool) error {
	path, err := s.resolve(name)
	if err != nil {
		if required {
			return err
		}
		return nil
	}
	return s.loadPath(path, out)
}

// resolve finds the file that would back the given logical name,
// preferring dev_<name>.json over <name>.json in dev mode.
func (s *Store) resolve(name string) (string, error) {
	if s.devMode {
		devPath := filepath.Join(s.dir, "dev_"+name+".json")
		if _, err := os.Stat(devPath); err == nil {
			return devPath, nil
		}
	}

	path := filepath.Join(s.dir, name+".json")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", yerrors.ErrConfigNotFound
		}
		return "", fmt.Errorf("statting config %q: %w", name, err)
	}
	return path, nil
}

// LoadPath loads a JSON document from an explicit path, bypassing the
// logical-name/dev-overlay lookup entirely.
func (s *Store) LoadPath(path string, out interface{}) error {
	return s.loadPath(path, out)
}

func (s *Store) loadPath(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return yerrors.ErrConfigNotFound
		}
		return fmt.Errorf("reading config %q: %w", path, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", yerrors.ErrConfigParse, path, err)
	}
	return nil
}
