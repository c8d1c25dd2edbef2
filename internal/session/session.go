// Package session holds the process-wide flags set exactly once at
// Yggdrasil startup: a single struct built once in main() and read
// everywhere else, with read-only booleans that never change after
// Init.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/yerrors"
)

// Session is the immutable, process-wide set of flags established at
// startup: dev-mode and manual-submit. It is safe for concurrent use.
type Session struct {
	devMode      atomic.Bool
	manualSubmit atomic.Bool
	initialized  atomic.Bool
}

var (
	defaultOnce sync.Once
	defaultSess = &Session{}
)

// Default returns the process-wide Session instance.
func Default() *Session {
	defaultOnce.Do(func() {})
	return defaultSess
}

// Init sets the session flags exactly once. A second call returns
// ErrAlreadyInitialized and leaves the existing flags untouched.
func (s *Session) Init(devMode, manualSubmit bool) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return yerrors.ErrAlreadyInitialized
	}
	s.devMode.Store(devMode)
	s.manualSubmit.Store(manualSubmit)
	return nil
}

// DevMode reports whether the process was started with --dev.
func (s *Session) DevMode() bool {
	return s.devMode.Load()
}

// ManualSubmit reports whether the process was started with
// -m/--manual-submit.
func (s *Session) ManualSubmit() bool {
	return s.manualSubmit.Load()
}

// Initialized reports whether Init has already been called.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}
