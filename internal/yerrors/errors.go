// Package yerrors holds the small taxonomy of sentinel errors shared
// across Yggdrasil's core components, checked with errors.Is at call
// sites per the error handling design.
package yerrors

import "errors"

var (
	// ErrAlreadyInitialized is returned by Session when a process-wide
	// flag is set a second time.
	ErrAlreadyInitialized = errors.New("yggdrasil: already initialized")

	// ErrNotFound is returned by stores when a document does not exist.
	ErrNotFound = errors.New("yggdrasil: not found")

	// ErrConfigNotFound is returned by ConfigStore for a required,
	// missing logical config name.
	ErrConfigNotFound = errors.New("yggdrasil: config not found")

	// ErrConfigParse is returned by ConfigStore when a config file
	// fails to parse as JSON.
	ErrConfigParse = errors.New("yggdrasil: config parse error")

	// ErrConflict is returned by YggdrasilDoc store saves that lose an
	// optimistic-concurrency race.
	ErrConflict = errors.New("yggdrasil: save conflict")

	// ErrUnknownModule names the case of a method string that resolves
	// to no registry entry. Registry.Resolve reports that case with a
	// false result and does not return this error.
	ErrUnknownModule = errors.New("yggdrasil: unknown module")

	// ErrInvalidReportEntry is returned when an NGI report entry is
	// missing a required key.
	ErrInvalidReportEntry = errors.New("yggdrasil: invalid report entry")
)
