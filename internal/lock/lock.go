// Package lock implements the Transactional Lock Manager: a
// two-phase shared/exclusive lock table on logical entity ids, with
// upgrade and deadlock-safe release. Strict 2PL: locks are only
// released on commit or abort via RemoveTransaction.
package lock

import (
	"sync"

	"github.com/coredb-io/polystore/internal/perr"
)

// Mode is a lock's granted strength.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// Global is the sentinel entity id used for schema-wide operations that
// must exclude all concurrent DDL.
const Global int64 = -1

// Request is one (entity, mode) pair to acquire, in the order supplied.
type Request struct {
	Entity int64
	Mode   Mode
}

type lockState struct {
	mu        sync.Mutex
	cond      *sync.Cond
	sharedBy  map[int64]bool // txn -> held
	exclusive int64          // owning txn, 0 if none
	hasExcl   bool
	upgrading int64 // txn currently in the single upgrade slot, 0 if none
}

func newLockState() *lockState {
	l := &lockState{sharedBy: map[int64]bool{}}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Manager is the process-wide lock table plus wait-for graph.
type Manager struct {
	mu    sync.Mutex
	locks map[int64]*lockState

	// heldBy / waitFor implement the wait-for graph for deadlock
	// detection: heldBy[entity] is the set of txns currently holding
	// entity (in any mode); waitFor[txn] is the set of txns txn is
	// blocked on.
	heldBy  map[int64]map[int64]bool // entity -> txns holding it
	waitFor map[int64]map[int64]bool
	wfMu    sync.Mutex
}

// NewManager returns an empty lock table.
func NewManager() *Manager {
	return &Manager{
		locks:   map[int64]*lockState{},
		heldBy:  map[int64]map[int64]bool{},
		waitFor: map[int64]map[int64]bool{},
	}
}

func (m *Manager) stateFor(entity int64) *lockState {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[entity]
	if !ok {
		l = newLockState()
		m.locks[entity] = l
	}
	return l
}

// Lock acquires every request in order, blocking until each is granted.
// Re-acquiring an already-held lock in an equal or weaker mode is a
// no-op; requesting EXCLUSIVE while holding SHARED upgrades in place.
// On a deadlock the current requester is the victim: its partial
// acquisitions (from this call) are released and *perr.Error with code
// Deadlock is returned.
func (m *Manager) Lock(txn int64, reqs []Request) error {
	acquired := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		if err := m.acquireOne(txn, r.Entity, r.Mode); err != nil {
			for _, e := range acquired {
				m.releaseOne(txn, e)
			}
			return err
		}
		acquired = append(acquired, r.Entity)
	}
	return nil
}

func (m *Manager) acquireOne(txn, entity int64, mode Mode) error {
	l := m.stateFor(entity)
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if m.grantable(l, txn, mode) {
			m.grant(l, txn, mode)
			m.recordHeld(txn, entity)
			m.clearWait(txn)
			return nil
		}

		owners := m.ownersLocked(l, txn)
		if err := m.recordWaitAndCheckCycle(txn, owners); err != nil {
			return err
		}
		l.cond.Wait()
		m.clearWait(txn)
	}
}

// grantable reports whether txn can be granted mode on l without
// blocking, assuming l.mu is held.
func (m *Manager) grantable(l *lockState, txn int64, mode Mode) bool {
	if l.sharedBy[txn] && mode == Shared {
		return true
	}
	if l.hasExcl && l.exclusive == txn {
		return true // already exclusive; any re-request is a no-op
	}

	if mode == Shared {
		return !l.hasExcl
	}

	// mode == Exclusive
	if !l.hasExcl && len(l.sharedBy) == 0 {
		return true
	}
	// Upgrade path: sole shared holder may upgrade, but only one
	// upgrader at a time avoids the "two upgraders" deadlock.
	if l.sharedBy[txn] && len(l.sharedBy) == 1 && !l.hasExcl {
		if l.upgrading == 0 || l.upgrading == txn {
			l.upgrading = txn
			return true
		}
	}
	return false
}

func (m *Manager) grant(l *lockState, txn int64, mode Mode) {
	if mode == Shared {
		if l.hasExcl && l.exclusive == txn {
			return
		}
		l.sharedBy[txn] = true
		return
	}
	// Exclusive: drop any shared entry this txn held (upgrade case).
	delete(l.sharedBy, txn)
	l.hasExcl = true
	l.exclusive = txn
	l.upgrading = 0
}

func (m *Manager) ownersLocked(l *lockState, txn int64) []int64 {
	var owners []int64
	if l.hasExcl && l.exclusive != txn {
		owners = append(owners, l.exclusive)
	}
	for t := range l.sharedBy {
		if t != txn {
			owners = append(owners, t)
		}
	}
	return owners
}

func (m *Manager) recordHeld(txn, entity int64) {
	m.wfMu.Lock()
	defer m.wfMu.Unlock()
	s, ok := m.heldBy[entity]
	if !ok {
		s = map[int64]bool{}
		m.heldBy[entity] = s
	}
	s[txn] = true
}

// recordWaitAndCheckCycle adds txn -> owners edges to the wait-for graph
// and runs cycle detection. If granting this wait would create a cycle,
// txn itself is the victim: a cycle always selects the current requester.
func (m *Manager) recordWaitAndCheckCycle(txn int64, owners []int64) error {
	m.wfMu.Lock()
	defer m.wfMu.Unlock()
	if len(owners) == 0 {
		return nil
	}
	s, ok := m.waitFor[txn]
	if !ok {
		s = map[int64]bool{}
		m.waitFor[txn] = s
	}
	for _, o := range owners {
		s[o] = true
	}
	if m.hasCycleLocked(txn) {
		delete(m.waitFor, txn)
		return perr.New(perr.Deadlock, "deadlock detected, aborting transaction %d", txn)
	}
	return nil
}

// hasCycleLocked runs a DFS from start over waitFor edges; caller holds
// wfMu.
func (m *Manager) hasCycleLocked(start int64) bool {
	visited := map[int64]bool{}
	var dfs func(n int64) bool
	dfs = func(n int64) bool {
		if n == start && visited[n] {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for next := range m.waitFor[n] {
			if next == start {
				return true
			}
			if dfs(next) {
				return true
			}
		}
		return false
	}
	for next := range m.waitFor[start] {
		if next == start || dfs(next) {
			return true
		}
	}
	return false
}

func (m *Manager) clearWait(txn int64) {
	m.wfMu.Lock()
	defer m.wfMu.Unlock()
	delete(m.waitFor, txn)
}

// Unlock releases the given entities for txn.
func (m *Manager) Unlock(txn int64, entities []int64) {
	for _, e := range entities {
		m.releaseOne(txn, e)
	}
}

func (m *Manager) releaseOne(txn, entity int64) {
	l := m.stateFor(entity)
	l.mu.Lock()
	if l.hasExcl && l.exclusive == txn {
		l.hasExcl = false
		l.exclusive = 0
	}
	delete(l.sharedBy, txn)
	if l.upgrading == txn {
		l.upgrading = 0
	}
	l.cond.Broadcast()
	l.mu.Unlock()

	m.wfMu.Lock()
	if s, ok := m.heldBy[entity]; ok {
		delete(s, txn)
	}
	m.wfMu.Unlock()
}

// RemoveTransaction releases every lock txn holds, across all entities.
// Called on commit or abort.
func (m *Manager) RemoveTransaction(txn int64) {
	m.mu.Lock()
	entities := make([]int64, 0, len(m.locks))
	for e := range m.locks {
		entities = append(entities, e)
	}
	m.mu.Unlock()
	m.Unlock(txn, entities)
	m.clearWait(txn)
}
