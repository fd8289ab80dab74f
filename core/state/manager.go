package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"claimdrop/storage"
)

var rolePrefix = []byte("role:")

type dirtyValue struct {
	data    []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    dirtyValue
	hadPrev bool
}

// Manager is the journaled key/value state shared by every module hosted on
// the same ledger. Values are RLP encoded and keys are keccak hashed before
// they reach the backing database.
//
// Writes accumulate in a dirty set and are only flushed to the database when
// an atomic unit completes without error. Every write is journaled so a failed
// unit can be unwound with RevertToSnapshot, leaving no partial effects.
//
// The KV accessors are not synchronised on their own. Concurrent callers must
// go through Atomic or View, which serialise units into a strict total order.
// Code running inside a unit uses the accessors directly; calling Atomic or
// View from within a unit blocks forever.
type Manager struct {
	unit    sync.Mutex
	inUnit  bool
	db      storage.Database
	dirty   map[string]dirtyValue
	journal []journalEntry
	hooks   []func()
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	if db == nil {
		db = storage.NewMemDB()
	}
	return &Manager{
		db:    db,
		dirty: make(map[string]dirtyValue),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return buf
}

func (m *Manager) getRaw(hashed []byte) ([]byte, bool, error) {
	if entry, ok := m.dirty[string(hashed)]; ok {
		if entry.deleted {
			return nil, false, nil
		}
		return entry.data, true, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) setRaw(hashed []byte, value dirtyValue) {
	key := string(hashed)
	prev, hadPrev := m.dirty[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, hadPrev: hadPrev})
	m.dirty[key] = value
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.getRaw(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut RLP encodes value and stages it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	m.setRaw(kvKey(key), dirtyValue{data: encoded})
	return nil
}

// KVDelete stages the removal of key.
func (m *Manager) KVDelete(key []byte) error {
	m.setRaw(kvKey(key), dirtyValue{deleted: true})
	return nil
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot unwinds every write staged after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Commit flushes the dirty set to the backing database in a single batch and
// resets the journal.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	batch := m.db.NewBatch()
	keys := make([]string, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := m.dirty[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.data)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]dirtyValue)
	m.journal = m.journal[:0]
	return nil
}

// Atomic executes fn as one indivisible unit. Units are serialised; when fn
// returns an error (or panics) every write it staged is reverted, otherwise
// the writes are committed to the database together. Hooks registered with
// AfterCommit during a successful unit run once the unit lock is released.
func (m *Manager) Atomic(fn func() error) error {
	hooks, err := m.runUnit(fn)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		hook()
	}
	return nil
}

func (m *Manager) runUnit(fn func() error) (hooks []func(), err error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	m.inUnit = true
	defer func() {
		m.inUnit = false
		m.hooks = nil
	}()

	snap := m.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			m.RevertToSnapshot(snap)
			panic(r)
		}
	}()
	if err = fn(); err != nil {
		m.RevertToSnapshot(snap)
		return nil, err
	}
	if err = m.Commit(); err != nil {
		m.RevertToSnapshot(snap)
		return nil, err
	}
	return m.hooks, nil
}

// AfterCommit defers fn until the running unit commits. Hooks of a reverted
// unit or of a View are dropped. Outside a unit fn runs immediately.
func (m *Manager) AfterCommit(fn func()) {
	if fn == nil {
		return
	}
	if !m.inUnit {
		fn()
		return
	}
	m.hooks = append(m.hooks, fn)
}

// View runs fn under the unit lock without committing. Any writes fn stages
// are discarded.
func (m *Manager) View(fn func() error) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	m.inUnit = true
	defer func() {
		m.inUnit = false
		m.hooks = nil
	}()
	snap := m.Snapshot()
	defer m.RevertToSnapshot(snap)
	return fn()
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.KVPut(roleKey(trimmed), members)
}

// RemoveRole drops the address from the role if present.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return m.KVDelete(roleKey(trimmed))
	}
	return m.KVPut(roleKey(trimmed), kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	var members [][]byte
	ok, err := m.KVGet(roleKey(strings.TrimSpace(role)), &members)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][]byte{}, nil
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return, matching the best-effort semantics required by the callers.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}
