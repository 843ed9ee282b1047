package reflection

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session scopes type identity. Type and conformance IDs are stable within a
// session and written into existential headers.
//
// Thread Safety: Session is safe for concurrent use.
type Session struct {
	ID uuid.UUID

	mu         sync.Mutex
	typeIDs    map[string]uint32
	witnessIDs map[witnessKey]uint32
	types      map[string]*TypeLayout
	programs   map[string]*Program
}

type witnessKey struct {
	concrete, iface string
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		ID:         uuid.New(),
		typeIDs:    make(map[string]uint32),
		witnessIDs: make(map[witnessKey]uint32),
		types:      make(map[string]*TypeLayout),
		programs:   make(map[string]*Program),
	}
}

// TypeID returns the ID of the named type, assigning the next one on first
// use. IDs start at 1; 0 means "no value".
func (s *Session) TypeID(name string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.typeIDs[name]
	if !ok {
		id = uint32(len(s.typeIDs) + 1)
		s.typeIDs[name] = id
	}
	return id
}

// ConformanceID returns the witness ID for concrete type t implementing
// iface. It fails with ErrNotConformant if t does not declare iface.
func (s *Session) ConformanceID(t *TypeLayout, iface string) (uint32, error) {
	if !t.Type.ConformsTo(iface) {
		return 0, fmt.Errorf("%w: %s does not implement %s", ErrNotConformant, t.Name(), iface)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := witnessKey{t.Name(), iface}
	id, ok := s.witnessIDs[k]
	if !ok {
		id = uint32(len(s.witnessIDs) + 1)
		s.witnessIDs[k] = id
	}
	return id, nil
}

// Register records a named type so it can be found with Lookup.
func (s *Session) Register(t *TypeLayout) {
	s.mu.Lock()
	s.types[t.Name()] = t
	s.mu.Unlock()
}

// Lookup returns a registered type.
func (s *Session) Lookup(name string) (*TypeLayout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[name]
	return t, ok
}

// Program returns a program built in this session by name.
func (s *Session) Program(name string) (*Program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[name]
	return p, ok
}

func (s *Session) register(p *Program) {
	s.mu.Lock()
	s.programs[p.Name] = p
	s.mu.Unlock()
}

func (s *Session) newProgramID() uuid.UUID {
	return uuid.New()
}
