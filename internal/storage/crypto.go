package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Format: magic(8) + salt(16) + nonce(12) + encrypted_data + auth_tag(16)
const (
	gcmMagic   = "GCM3NCR0"
	saltLen    = 16
	nonceLen   = 12
	tagLen     = 16
	kdfRounds  = 100000
	keyLen     = 32
	headerSize = len(gcmMagic) + saltLen + nonceLen
)

func gcmFor(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfRounds, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals data with a key derived from password.
func Encrypt(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	gcm, err := gcmFor(password, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, headerSize+len(data)+tagLen)
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data produced by Encrypt.
func Decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < headerSize+tagLen {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	if string(data[:len(gcmMagic)]) != gcmMagic {
		return nil, fmt.Errorf("unknown encryption format")
	}
	salt := data[len(gcmMagic) : len(gcmMagic)+saltLen]
	nonce := data[len(gcmMagic)+saltLen : headerSize]
	gcm, err := gcmFor(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}

// Encrypted seals result payloads before they reach the wrapped store.
type Encrypted struct {
	Store
	password string
}

func NewEncrypted(s Store, password string) *Encrypted {
	return &Encrypted{Store: s, password: password}
}

func (e *Encrypted) Put(ctx context.Context, r *Result, data []byte) error {
	sealed, err := Encrypt(data, e.password)
	if err != nil {
		return fmt.Errorf("failed to encrypt result: %w", err)
	}
	r.Size = int64(len(data))
	return e.Store.Put(ctx, r, sealed)
}

func (e *Encrypted) Get(ctx context.Context, id string) (*Result, []byte, error) {
	r, sealed, err := e.Store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := Decrypt(sealed, e.password)
	if err != nil {
		log.Error().Err(err).Str("result_id", id).Msg("stored result could not be decrypted")
		return nil, nil, fmt.Errorf("failed to decrypt result: %w", err)
	}
	return r, data, nil
}
