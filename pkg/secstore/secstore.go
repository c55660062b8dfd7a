// Package secstore is an encrypted key/value store backed by the sqlite
// bridge. Values are sealed with NaCl Secretbox under a key derived from the
// user key with Argon2id; each value carries its own salt and nonce.
package secstore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/go-pkgz/lgr"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/umputun/slate/pkg/sqlite"
)

// Store keeps encrypted values in one table of a SQLite database.
type Store struct {
	db  *sqlite.Conn
	key []byte
}

// New opens (creating if needed) the store at path. The key is the user
// secret the per-value encryption keys are derived from.
func New(path string, key []byte) (*Store, error) {
	if len(key) == 0 {
		return nil, errors.New("key is required")
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open store database: %w", err)
	}
	if err = db.Exec(`CREATE TABLE IF NOT EXISTS secrets (skey TEXT PRIMARY KEY, sval TEXT NOT NULL)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("can't create secrets table: %w", err)
	}
	lgr.Printf("[INFO] secrets store: using %s", path)
	return &Store{db: db, key: key}, nil
}

// Close releases the backing database.
func (s *Store) Close() error { return s.db.Close() }

// Get retrieves a value, decrypts it and returns it.
func (s *Store) Get(key string) (string, error) {
	st, err := s.db.Prepare("SELECT sval FROM secrets WHERE skey = :key")
	if err != nil {
		return "", err
	}
	defer st.Finalize() //nolint:errcheck // statement is consumed, finalize error is not actionable

	if err = st.BindAllNamed(map[string]any{":key": key}); err != nil {
		return "", err
	}
	more, err := st.Step()
	if err != nil {
		return "", err
	}
	if !more {
		return "", errors.New("secret not found")
	}

	sealed, err := st.ColumnValue(0)
	if err != nil {
		return "", err
	}
	encoded, err := sqlite.As[string](sealed, "sval")
	if err != nil {
		return "", err
	}

	decrypted, err := s.decrypt(encoded)
	if err != nil {
		return "", fmt.Errorf("can't get secret for %s: %w", key, err)
	}
	return decrypted, nil
}

// Set stores a value, encrypted, replacing any previous one.
func (s *Store) Set(key, value string) error {
	encrypted, err := s.encrypt(value)
	if err != nil {
		return fmt.Errorf("can't set secret for %s: %w", key, err)
	}

	return s.db.WriteTransact(func(c *sqlite.Conn) error {
		st, err := c.Prepare("INSERT OR REPLACE INTO secrets (skey, sval) VALUES (:key, :val)")
		if err != nil {
			return fmt.Errorf("can't prepare insert statement: %w", err)
		}
		defer st.Finalize() //nolint:errcheck // statement is consumed, finalize error is not actionable

		if err = st.BindAllNamed(map[string]any{":key": key, ":val": encrypted}); err != nil {
			return err
		}
		if _, err = st.Step(); err != nil {
			return fmt.Errorf("can't insert secret: %w", err)
		}
		return nil
	})
}

// Delete removes a value; a missing key is an error.
func (s *Store) Delete(key string) error {
	return s.db.WriteTransact(func(c *sqlite.Conn) error {
		st, err := c.Prepare("DELETE FROM secrets WHERE skey = :key")
		if err != nil {
			return fmt.Errorf("can't prepare delete statement: %w", err)
		}
		defer st.Finalize() //nolint:errcheck // statement is consumed, finalize error is not actionable

		if err = st.BindAllNamed(map[string]any{":key": key}); err != nil {
			return err
		}
		if _, err = st.Step(); err != nil {
			return fmt.Errorf("can't delete secret for %s: %w", key, err)
		}
		if c.Changes() == 0 {
			return fmt.Errorf("key not found: %s", key)
		}
		return nil
	})
}

// List returns the stored keys, optionally filtered by prefix. "*" and ""
// both mean everything.
func (s *Store) List(prefix string) ([]string, error) {
	sql, args := "SELECT skey FROM secrets ORDER BY skey", []any{}
	if prefix != "*" && prefix != "" {
		sql = "SELECT skey FROM secrets WHERE skey LIKE ? ORDER BY skey"
		args = append(args, prefix+"%")
	}

	rows, err := s.db.Query(sql, args...)
	if err != nil {
		return nil, fmt.Errorf("can't list secrets: %w", err)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		key, err := sqlite.RowAs[string](row, 0)
		if err != nil {
			return nil, fmt.Errorf("can't read secret key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// encrypt seals data with a fresh salt and nonce: base64(nonce | salt | box).
func (s *Store) encrypt(data string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	naclKey := new([32]byte)
	copy(naclKey[:], deriveKey(s.key, salt))

	nonce := new([24]byte)
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}

	out := make([]byte, 24+16)
	copy(out, nonce[:])
	copy(out[24:], salt)

	sealed := secretbox.Seal(out, []byte(data), nonce, naclKey)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt.
func (s *Store) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < 40 {
		return "", errors.New("sealed value is too short")
	}

	nonce := new([24]byte)
	copy(nonce[:], sealed[:24])

	naclKey := new([32]byte)
	copy(naclKey[:], deriveKey(s.key, sealed[24:40]))

	decrypted, ok := secretbox.Open(nil, sealed[40:], nonce, naclKey)
	if !ok {
		return "", errors.New("failed to decrypt")
	}
	return string(decrypted), nil
}

// deriveKey stretches the user key with Argon2id. The parameters favour
// interactive use: one pass over 64 MiB with four lanes.
func deriveKey(key, salt []byte) []byte {
	return argon2.IDKey(key, salt, 1, 64*1024, 4, 32)
}
