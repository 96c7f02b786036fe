// Package vault implements the CredentialVault: a separate, AEAD-encrypted
// store for credential-like payloads so the FactStore only ever writes an
// opaque pointer text for them.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	_ "modernc.org/sqlite"

	"github.com/openclaw/hybridmem/internal/logging"
)

// ErrWrongPassphrase is returned when ciphertext fails to authenticate,
// which is the vault's only signal of a bad key (by design, AEAD does not
// distinguish a wrong key from corrupted ciphertext).
var ErrWrongPassphrase = fmt.Errorf("vault: decryption failed (wrong passphrase or corrupted ciphertext)")

// ErrNotFound is returned when no credential matches the given (service, type).
var ErrNotFound = fmt.Errorf("vault: credential not found")

// Credential is a decrypted secret entry.
type Credential struct {
	Service   string    `json:"service"`
	Type      string    `json:"type"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Vault is the AEAD-backed credential store, keyed by (service, type).
type Vault struct {
	mu   sync.RWMutex
	db   *sql.DB
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

// Options configures Open.
type Options struct {
	Path       string
	Passphrase string
	// MinPassphraseLen enforces the floor on Passphrase's length (default 16).
	MinPassphraseLen int
}

// Open opens (creating if absent) the credentials database and derives the
// AEAD key as SHA-256(passphrase).
func Open(opts Options) (*Vault, error) {
	if opts.MinPassphraseLen <= 0 {
		opts.MinPassphraseLen = 16
	}
	if len(opts.Passphrase) < opts.MinPassphraseLen {
		return nil, fmt.Errorf("vault: passphrase must be at least %d characters", opts.MinPassphraseLen)
	}

	key := sha256.Sum256([]byte(opts.Passphrase))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: init aead: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", opts.Path))
	if err != nil {
		return nil, fmt.Errorf("vault: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		service TEXT NOT NULL,
		type TEXT NOT NULL,
		ciphertext BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (service, type)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: create table: %w", err)
	}

	logging.Store("vault opened: path=%s", opts.Path)
	return &Vault{db: db, aead: aead}, nil
}

// Close releases the underlying database handle.
func (v *Vault) Close() error {
	return v.db.Close()
}

// PointerText returns the opaque pointer the FactStore persists in place of
// a credential-like payload.
func PointerText(service string) string {
	return "vault:" + service
}

// Store encrypts and persists secret under (service, type). On-disk layout
// is IV(12) || AUTH_TAG(16) || CIPHERTEXT; chacha20poly1305.Seal appends the
// tag after the ciphertext, so Store reorders the two before writing.
func (v *Vault) Store(service, credType, secret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(secret), nil)
	tagSize := v.aead.Overhead()
	body, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	ciphertext := make([]byte, 0, len(nonce)+len(tag)+len(body))
	ciphertext = append(ciphertext, nonce...)
	ciphertext = append(ciphertext, tag...)
	ciphertext = append(ciphertext, body...)

	_, err := v.db.Exec(
		`INSERT INTO credentials (service, type, ciphertext, created_at) VALUES (?,?,?,?)
		 ON CONFLICT(service, type) DO UPDATE SET ciphertext = excluded.ciphertext, created_at = excluded.created_at`,
		service, credType, ciphertext, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("vault: store: %w", err)
	}

	logging.Store("vault credential stored: service=%s type=%s", service, credType)
	return nil
}

// Get decrypts and returns the credential for (service, type).
func (v *Vault) Get(service, credType string) (*Credential, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var ciphertext []byte
	var createdAt time.Time
	err := v.db.QueryRow(
		`SELECT ciphertext, created_at FROM credentials WHERE service = ? AND type = ?`,
		service, credType,
	).Scan(&ciphertext, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vault: get: %w", err)
	}

	plaintext, err := v.decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	return &Credential{Service: service, Type: credType, Secret: string(plaintext), CreatedAt: createdAt}, nil
}

func (v *Vault) decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := v.aead.NonceSize()
	tagSize := v.aead.Overhead()
	if len(ciphertext) < nonceSize+tagSize {
		return nil, fmt.Errorf("vault: ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	tag := ciphertext[nonceSize : nonceSize+tagSize]
	body := ciphertext[nonceSize+tagSize:]

	// Seal's own output format appends the tag after the body, so
	// reassemble that order before calling Open.
	sealed := make([]byte, 0, len(body)+len(tag))
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// List returns the (service, type) pairs stored in the vault, without
// decrypting their secrets.
func (v *Vault) List() ([]Credential, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rows, err := v.db.Query(`SELECT service, type, created_at FROM credentials ORDER BY service, type`)
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.Service, &c.Type, &c.CreatedAt); err != nil {
			continue
		}
		creds = append(creds, c)
	}
	return creds, nil
}

// Delete removes the credential for (service, type).
func (v *Vault) Delete(service, credType string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.db.Exec(`DELETE FROM credentials WHERE service = ? AND type = ?`, service, credType); err != nil {
		return fmt.Errorf("vault: delete: %w", err)
	}
	return nil
}
