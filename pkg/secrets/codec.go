// pkg/secrets/codec.go
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrIntegrity is returned when a stored blob is malformed or its
// authentication tag does not verify (tampered data or wrong key).
var ErrIntegrity = errors.New("ciphertext failed integrity check")

// Codec encrypts and decrypts tenant credentials for at-rest storage with
// AES-256-GCM. The key is the SHA-256 digest of the operator-supplied
// secret, so input secrets of any length are normalized to 32 bytes.
//
// Blobs are self-describing text of the form hexNonce:hexTag:hexCiphertext,
// suitable for a single text column. There is no key versioning: changing
// the key invalidates every previously stored blob.
type Codec struct {
	key [32]byte
}

func NewCodec(key string) *Codec {
	return &Codec{key: sha256.Sum256([]byte(key))}
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag; split it back out so the blob stores the
	// nonce, tag and ciphertext as distinct parts.
	tagAt := len(sealed) - gcm.Overhead()
	ct, tag := sealed[:tagAt], sealed[tagAt:]
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

func (c *Codec) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("want 3 parts, got %d: %w", len(parts), ErrIntegrity)
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("bad nonce encoding: %w", ErrIntegrity)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("bad tag encoding: %w", ErrIntegrity)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("bad ciphertext encoding: %w", ErrIntegrity)
	}
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("bad nonce length %d: %w", len(nonce), ErrIntegrity)
	}
	plain, err := gcm.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plain), nil
}

func (c *Codec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
