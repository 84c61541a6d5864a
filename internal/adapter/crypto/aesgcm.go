// Package crypto encrypts artifacts with a passphrase.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

var ErrCiphertextTooShort = errors.New("encrypted payload too small")

// argonParams are the Argon2id cost parameters.
type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

var defaultParams = argonParams{time: 3, memory: 64 * 1024, threads: 4}

// AESGCM encrypts with AES-256-GCM under an Argon2id key derived from a
// passphrase and a fresh salt per payload.
// Output format: [16-byte salt][12-byte nonce][ciphertext]
type AESGCM struct {
	passphrase string
	params     argonParams
}

func NewAESGCM(passphrase string) (*AESGCM, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is empty")
	}
	return &AESGCM{passphrase: passphrase, params: defaultParams}, nil
}

func (a *AESGCM) deriveKey(salt []byte) []byte {
	return argon2.IDKey([]byte(a.passphrase), salt, a.params.time, a.params.memory, a.params.threads, keySize)
}

func (a *AESGCM) gcm(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(a.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func (a *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := a.gcm(salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

func (a *AESGCM) Decrypt(data []byte) ([]byte, error) {
	if len(data) < saltSize+nonceSize {
		return nil, ErrCiphertextTooShort
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := a.gcm(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
