// Package registry implements the module resolver: a build-time
// mapping from a project's library-construction-method string to a
// realm identifier. There is no runtime code loading; the registry is
// the only extension point for realms.
package registry

// Entry describes one registry row: the realm module id a method name
// resolves to, and whether the key should be matched as a prefix
// rather than exactly.
type Entry struct {
	Module string
	Prefix bool
}

// Registry maps library-construction-method strings to realm module
// ids.
type Registry struct {
	entries map[string]Entry
}

// New returns a Registry populated from entries (name -> Entry).
func New(entries map[string]Entry) *Registry {
	cp := make(map[string]Entry, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &Registry{entries: cp}
}

// Resolve maps method to a realm module id. It tries an exact match
// first; if none is found, it scans prefix-flagged entries and
// returns the module of the first whose key is a prefix of method.
// Ordering of the prefix scan follows Go's (unspecified, randomized)
// map iteration order — callers must not depend on a particular
// tie-break when multiple prefixes match the same method.
// Returns "", false if nothing resolves.
func (r *Registry) Resolve(method string) (string, bool) {
	if e, ok := r.entries[method]; ok {
		return e.Module, true
	}

	for key, e := range r.entries {
		if !e.Prefix {
			continue
		}
		if len(method) >= len(key) && method[:len(key)] == key {
			return e.Module, true
		}
	}

	return "", false
}
