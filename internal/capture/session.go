// Package capture records which files a unit of code reads and writes.
//
// Go has no ambient way to patch file primitives, so tracked code performs its
// I/O through the FS facade (or the package-level helpers, which route through
// the installed session). Work done by child processes is observed by
// comparing two Snapshotter.Take results instead; reads made there must be
// declared by the caller.
package capture

import (
	"errors"
	"sort"
	"sync"

	"github.com/viant/afs"
)

var (
	// ErrSessionActive is returned when a session is installed while another
	// one is still active. Sessions do not nest.
	ErrSessionActive = errors.New("capture: another session is already active")
	// ErrSessionClosed is returned when installing a session that was closed.
	ErrSessionClosed = errors.New("capture: session is closed")
)

// Config controls what a session records.
type Config struct {
	// ExcludedPatterns are case-insensitive path fragments that are never
	// recorded. Nil selects DefaultExcludedPatterns.
	ExcludedPatterns []string
}

// Session accumulates the read and write sets for one tracked execution.
type Session struct {
	mu         sync.Mutex
	classifier *Classifier
	reads      map[NormalizedPath]struct{}
	writes     map[NormalizedPath]struct{}
	closed     bool

	base osFS
}

var (
	activeMu sync.Mutex
	active   *Session
)

// NewSession creates a session that records only what is explicitly routed
// through it. Call Install (or use Begin) to make it the process-wide target
// of the package-level helpers.
func NewSession(cfg Config) *Session {
	return &Session{
		classifier: NewClassifier(cfg.ExcludedPatterns),
		reads:      make(map[NormalizedPath]struct{}),
		writes:     make(map[NormalizedPath]struct{}),
		base:       osFS{fs: afs.New()},
	}
}

// Begin creates a session and installs it.
func Begin(cfg Config) (*Session, error) {
	s := NewSession(cfg)
	if err := s.Install(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run installs a session for the dynamic extent of fn. The session is
// uninstalled on every exit path, including a panic inside fn, which is
// propagated after restoration.
func Run(cfg Config, fn func(FS) error) (*Session, error) {
	s, err := Begin(cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s, fn(s)
}

// Active returns the installed session, or nil.
func Active() *Session {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}

// Install makes s the target of the package-level helpers.
func (s *Session) Install() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return ErrSessionActive
	}
	active = s
	return nil
}

// Close uninstalls the session and stops recording. It is idempotent and safe
// to defer unconditionally.
func (s *Session) Close() error {
	activeMu.Lock()
	if active == s {
		active = nil
	}
	activeMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RecordRead adds path to the read set if it is trackable.
func (s *Session) RecordRead(path string) {
	s.record(path, false)
}

// RecordWrite adds path to the write set if it is trackable.
func (s *Session) RecordWrite(path string) {
	s.record(path, true)
}

func (s *Session) record(path string, write bool) {
	if !s.classifier.Trackable(path) {
		return
	}
	normalized := Normalize(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if write {
		s.writes[normalized] = struct{}{}
	} else {
		s.reads[normalized] = struct{}{}
	}
}

// Reads returns the read set in sorted order.
func (s *Session) Reads() []NormalizedPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPaths(s.reads)
}

// Writes returns the write set in sorted order.
func (s *Session) Writes() []NormalizedPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPaths(s.writes)
}

// Empty reports whether nothing was recorded.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reads) == 0 && len(s.writes) == 0
}

func sortedPaths(set map[NormalizedPath]struct{}) []NormalizedPath {
	out := make([]NormalizedPath, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
