// Package memory keeps tenant settings and the academic calendar in process
// memory. It backs the service tests and the database-less development mode.
package memory

import (
	"context"
	"sync"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

type txKey struct{}

// Store is a single in-memory database. One mutex guards every table; a
// transaction holds it from start to finish, so transactions are serial.
type Store struct {
	mu    sync.Mutex
	state state
}

type state struct {
	sessions  map[string]models.AcademicSession
	terms     map[string]models.Term
	settings  map[string]models.SettingsRecord
	sequences map[string]int64
	audit     []models.AuditEvent
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: state{
		sessions:  map[string]models.AcademicSession{},
		terms:     map[string]models.Term{},
		settings:  map[string]models.SettingsRecord{},
		sequences: map[string]int64{},
	}}
}

// WithinTx runs fn while holding the store lock. When fn fails or panics every
// table is restored to its state before the call. Nested calls join the
// running transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.owns(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = saved
			panic(p)
		}
		if err != nil {
			s.state = saved
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) owns(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already runs inside a transaction
// of this store. The returned func releases it.
func (s *Store) lock(ctx context.Context) func() {
	if s.owns(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st state) clone() state {
	out := state{
		sessions:  make(map[string]models.AcademicSession, len(st.sessions)),
		terms:     make(map[string]models.Term, len(st.terms)),
		settings:  make(map[string]models.SettingsRecord, len(st.settings)),
		sequences: make(map[string]int64, len(st.sequences)),
		audit:     append([]models.AuditEvent(nil), st.audit...),
	}
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	for k, v := range st.terms {
		out.terms[k] = v
	}
	for k, v := range st.settings {
		v.Value = v.Value.Clone()
		out.settings[k] = v
	}
	for k, v := range st.sequences {
		out.sequences[k] = v
	}
	return out
}
