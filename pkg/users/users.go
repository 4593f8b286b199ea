package users

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/metrics"
)

const bucketUsers = "users"

const (
	saltLength  = 16
	argon2Time  = 1
	argon2Mem   = 64 * 1024 // KiB
	argon2Lanes = 4
	argon2KeyLn = 32
)

// record is the persisted Argon2id hash and the salt it was derived
// with, one per username.
type record struct {
	Salt []byte `json:"salt"`
	Hash []byte `json:"hash"`
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Mem, argon2Lanes, argon2KeyLn)
}

// dummySalt backs the constant-shape failure path: an unknown username
// still runs a full Argon2id derivation against this fixed salt so
// authentication latency does not reveal whether the username exists.
var dummySalt = make([]byte, saltLength)

// Store is the directory's password store: Argon2id hash keyed by
// username, with a fresh random salt generated per user.
type Store struct {
	db kv.Store
}

// Open returns a Store backed by db.
func Open(db kv.Store) *Store {
	return &Store{db: db}
}

// SetPassword hashes password with a fresh salt and stores it under
// username, replacing any prior hash.
func (s *Store) SetPassword(username, password string) error {
	existed, err := s.Exists(username)
	if err != nil {
		return err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("users: generate salt: %w", err)
	}

	rec := record{Salt: salt, Hash: deriveKey(password, salt)}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("users: encode record: %w", err)
	}

	err = s.db.Update(func(tx kv.Tx) error {
		return tx.Bucket(bucketUsers).Put([]byte(username), data)
	})
	if err != nil {
		return fmt.Errorf("users: set password for %q: %w", username, err)
	}
	if !existed {
		metrics.UsersTotal.Inc()
	}
	return nil
}

// DeleteUser removes username's stored hash.
func (s *Store) DeleteUser(username string) error {
	existed, err := s.Exists(username)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx kv.Tx) error {
		return tx.Bucket(bucketUsers).Delete([]byte(username))
	})
	if err != nil {
		return fmt.Errorf("users: delete %q: %w", username, err)
	}
	if existed {
		metrics.UsersTotal.Dec()
	}
	return nil
}

// Exists reports whether username has a stored hash.
func (s *Store) Exists(username string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx kv.Tx) error {
		ok = tx.Bucket(bucketUsers).Get([]byte(username)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("users: exists %q: %w", username, err)
	}
	return ok, nil
}

// Authenticate reports whether password is correct for username.
// Runtime is independent of whether the failure is caused by an
// unknown username or a wrong password: the unknown-username path
// still performs a full Argon2id derivation against a fixed salt.
func (s *Store) Authenticate(username, password string) (bool, error) {
	var raw []byte
	err := s.db.View(func(tx kv.Tx) error {
		raw = tx.Bucket(bucketUsers).Get([]byte(username))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("users: authenticate %q: %w", username, err)
	}

	if raw == nil {
		_ = deriveKey(password, dummySalt)
		return false, nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, fmt.Errorf("users: decode record for %q: %w", username, err)
	}

	candidate := deriveKey(password, rec.Salt)
	return subtle.ConstantTimeCompare(candidate, rec.Hash) == 1, nil
}
