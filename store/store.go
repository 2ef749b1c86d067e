package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/veritum-project/cube/cube"
)

var bucketCubes = []byte("cubes_by_key")

// Config configures a Store's validation and contest policy.
type Config struct {
	// Difficulty is the minimum hashcash trailing-zero-bit target
	// Add enforces before accepting a Cube (spec §3 "Hashcash").
	Difficulty int
	// Lifetime maps a Cube's achieved difficulty to a PIC/PMUC expiry
	// lifetime in epochs. Defaults to cube.DefaultLifetime.
	Lifetime LifetimeFunc
}

// DefaultConfig returns the default store policy: difficulty 0 (no
// proof-of-work floor) and the spec's default lifetime ramp.
func DefaultConfig() Config {
	return Config{Difficulty: 0, Lifetime: cube.DefaultLifetime}
}

// Store is a bbolt-backed, content-addressed Cube blob store (spec
// §4.3 "Cube store (C3)").
type Store struct {
	db     *bolt.DB
	cfg    Config
	mu     sync.Mutex // guards subscribers; bbolt serializes its own writers
	subs   map[int]chan [cube.HashSize]byte
	nextID int
	closed bool
}

// Open opens (creating if absent) a bbolt database at path as a Cube
// store.
func Open(path string, cfg Config) (*Store, error) {
	if cfg.Lifetime == nil {
		cfg.Lifetime = cube.DefaultLifetime
	}
	if err := validateDBPath(path); err != nil {
		return nil, newErr(CodeOpen, "%v", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, newErr(CodeOpen, "open bbolt at %s: %v", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCubes)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, newErr(CodeOpen, "create bucket: %v", err)
	}
	return &Store{db: db, cfg: cfg, subs: make(map[int]chan [cube.HashSize]byte)}, nil
}

// Close releases the underlying database. Pending Subscribe channels
// are closed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Subscribe returns a channel delivering the key of every Cube
// successfully stored by Add from this point on, and a cancel func
// that unregisters it. The channel is buffered; a subscriber that
// falls behind drops the oldest pending notification rather than
// blocking Add (spec §4.3 "Emission": the RequestScheduler consumer
// is out of scope, so the store must not let a slow consumer stall
// ingestion).
func (s *Store) Subscribe() (<-chan [cube.HashSize]byte, func()) {
	ch := make(chan [cube.HashSize]byte, 64)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) emit(key [cube.HashSize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- key:
		default:
			// Drop the oldest queued notification to make room
			// rather than block the writer that's adding Cubes.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- key:
			default:
			}
		}
	}
}

// Add validates blob as a Cube of type t (structure, hashcash policy,
// signature), derives its key, and stores it if it wins the contest
// against any existing Cube at that key (spec §4.3 "add(cube_or_blob)").
// It reports the derived key and whether the store's contents changed.
func (s *Store) Add(ctx context.Context, t cube.Type, blob []byte) (key [cube.HashSize]byte, stored bool, err error) {
	candidate, err := cube.FromBlob(t, blob, s.cfg.Difficulty)
	if err != nil {
		return key, false, err
	}
	key = candidate.Key

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return key, false, newErr(CodeClosed, "store is closed")
	}

	stored = false
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCubes)
		existingBlob := b.Get(key[:])
		if existingBlob == nil {
			stored = true
			return b.Put(key[:], candidate.Blob)
		}
		existing, ferr := cube.FromBlob(t, existingBlob, s.cfg.Difficulty)
		if ferr != nil {
			// A prior write under a different type shouldn't be
			// possible (the key derivation ties the key to the
			// type-dependent region), but fail safe by keeping the
			// incumbent rather than overwriting undiagnosed state.
			return nil
		}
		if winner(t, existing, candidate, s.cfg.Lifetime) {
			stored = true
			return b.Put(key[:], candidate.Blob)
		}
		return nil
	})
	if err != nil {
		return key, false, newErr(CodeIO, "store cube: %v", err)
	}
	if stored {
		s.emit(key)
	}
	return key, stored, nil
}

// validateDBPath rejects a database file name that is empty or a bare
// directory reference, so a caller-supplied path can't silently resolve
// to the store's own parent directory.
func validateDBPath(path string) error {
	name := filepath.Base(path)
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid store path: %q", path)
	}
	return nil
}

// Get returns the stored blob for key, if present.
func (s *Store) Get(key [cube.HashSize]byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCubes).Get(key[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, newErr(CodeIO, "get cube: %v", err)
	}
	return out, out != nil, nil
}

// GetAll returns every blob currently in the store. The order is
// unspecified (bbolt iterates in key order).
func (s *Store) GetAll() ([][]byte, error) {
	var out [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCubes).ForEach(func(_, v []byte) error {
			out = append(out, append([]byte(nil), v...))
			return nil
		})
	})
	if err != nil {
		return nil, newErr(CodeIO, "get all cubes: %v", err)
	}
	return out, nil
}
