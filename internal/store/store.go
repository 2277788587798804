// Package store provides durable per-identity storage of palm registrations.
//
// Each identity owns exactly one JSON file under the store directory.
// Writes go through a temp-file-then-rename so readers never observe a
// partially written record, and records that fail to parse are deleted and
// treated as absent rather than surfaced as errors.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/hasta/internal/palmprint"
)

var (
	// ErrAlreadyRegistered is returned when registering an identity that
	// already has a live registration.
	ErrAlreadyRegistered = errors.New("palm already registered")
	// ErrNotRegistered is returned when an operation targets an identity
	// with no registration.
	ErrNotRegistered = errors.New("no palm registered")
	// ErrInvalidIdentity is returned for identities that cannot name a record.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// FileStore stores one JSON registration file per identity.
//
// Write paths (Register, Delete, Touch) serialize per identity; reads take
// no locks and rely on atomic renames for consistency. No operation spans
// more than one identity.
type FileStore struct {
	dir   string
	locks sync.Map // identity -> *sync.Mutex
}

// New creates a FileStore rooted at dir, creating the directory if needed.
func New(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func validIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if strings.ContainsAny(identity, `/\`) || identity == "." || identity == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return nil
}

func (s *FileStore) path(identity string) string {
	return filepath.Join(s.dir, identity+".json")
}

// lock returns the mutex guarding one identity's record.
func (s *FileStore) lock(identity string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(identity, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Load reads the registration for an identity. A missing record returns
// (nil, nil). A record that fails to parse or validate is deleted and
// likewise treated as absent; parse errors never propagate to the caller.
func (s *FileStore) Load(identity string) (*Registration, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registration %q: %w", identity, err)
	}

	reg, err := decodeRegistration(data)
	if err != nil {
		log.Printf("Deleting corrupt registration for %q: %v", identity, err)
		if rmErr := os.Remove(s.path(identity)); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("Failed to delete corrupt registration for %q: %v", identity, rmErr)
		}
		return nil, nil
	}

	return reg, nil
}

func decodeRegistration(data []byte) (*Registration, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	reg := &Registration{}
	if err := dec.Decode(reg); err != nil {
		return nil, fmt.Errorf("parse registration: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	return reg, nil
}

// Save writes a registration durably. The record is written to a temp file
// in the same directory and renamed into place, so a concurrent reader
// sees either the old record or the new one, never a partial write.
func (s *FileStore) Save(identity string, reg *Registration) error {
	if err := validIdentity(identity); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("save registration: %w", err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registration %q: %w", identity, err)
	}

	tmp, err := os.CreateTemp(s.dir, identity+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write registration %q: %w", identity, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close registration %q: %w", identity, err)
	}

	if err := os.Rename(tmpPath, s.path(identity)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename registration %q: %w", identity, err)
	}

	return nil
}

// Delete removes the registration for an identity and reports whether a
// record existed.
func (s *FileStore) Delete(identity string) (bool, error) {
	if err := validIdentity(identity); err != nil {
		return false, err
	}

	mu := s.lock(identity)
	mu.Lock()
	defer mu.Unlock()

	err := os.Remove(s.path(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete registration %q: %w", identity, err)
	}

	return true, nil
}

// Register persists a new registration derived from a template. Fails with
// ErrAlreadyRegistered if the identity already has a live record; the
// existing record is left untouched.
func (s *FileStore) Register(identity string, t *palmprint.Template) (*Registration, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}

	mu := s.lock(identity)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.Load(identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, identity)
	}

	now := time.Now().UTC()
	reg := &Registration{
		Identity:            identity,
		Signature:           t.Signature,
		NormalizedDistances: t.NormalizedDistances,
		RawDistances:        t.RawDistances,
		RegisteredAt:        now,
		LastUsed:            now,
	}

	if err := s.Save(identity, reg); err != nil {
		return nil, err
	}

	return reg, nil
}

// Touch updates the lastUsed timestamp of an existing registration.
// Load-modify-save runs under the identity lock so concurrent matches
// against the same identity do not lose updates.
func (s *FileStore) Touch(identity string) error {
	if err := validIdentity(identity); err != nil {
		return err
	}

	mu := s.lock(identity)
	mu.Lock()
	defer mu.Unlock()

	reg, err := s.Load(identity)
	if err != nil {
		return err
	}
	if reg == nil {
		return fmt.Errorf("%w: %s", ErrNotRegistered, identity)
	}

	reg.LastUsed = time.Now().UTC()
	return s.Save(identity, reg)
}

// List enumerates summaries of all valid registrations sorted by identity.
// Records that fail to parse are skipped (Load deletes them).
func (s *FileStore) List() ([]Summary, error) {
	regs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(regs))
	for _, reg := range regs {
		summaries = append(summaries, Summary{
			Identity:     reg.Identity,
			RegisteredAt: reg.RegisteredAt,
			LastUsed:     reg.LastUsed,
		})
	}

	return summaries, nil
}

// LoadAll reads every valid registration in the store, sorted by identity.
// The result is a non-atomic snapshot: a record registered mid-scan may or
// may not appear.
func (s *FileStore) LoadAll() ([]*Registration, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var regs []*Registration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		identity := strings.TrimSuffix(name, ".json")
		reg, err := s.Load(identity)
		if err != nil {
			log.Printf("Skipping registration %q: %v", identity, err)
			continue
		}
		if reg == nil {
			// Corrupt record, already self-healed by Load.
			continue
		}

		regs = append(regs, reg)
	}

	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Identity < regs[j].Identity
	})

	return regs, nil
}
