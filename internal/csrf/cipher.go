package csrf

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
)

// Size constraints shared by the AEAD ciphers.
const (
	// KeySize is the size of the symmetric key in bytes.
	KeySize = 32

	// NonceSize is the size of the nonce prepended to every secret.
	NonceSize = 12

	// TagSize is the size of the AEAD authentication tag.
	TagSize = 16

	// MinTokenSize is the smallest accepted token size.
	MinTokenSize = 8

	// DefaultTokenSize is the token size used when none is configured.
	DefaultTokenSize = 32

	// minSecretSize is the shortest secret worth attempting to open.
	minSecretSize = 20
)

// Cipher produces and verifies token/secret pairs.
//
// The token is handed to the client through a form field or header, the
// secret through a cookie. Verify binds the two together.
type Cipher interface {
	// Generate returns a fresh token and its sealed secret.
	Generate() (token, secret []byte, err error)

	// Verify reports whether secret seals token. It never panics.
	Verify(token, secret []byte) bool
}

// Revealer is implemented by ciphers that can recover the token sealed in
// a secret. It lets a caller reuse an existing pair instead of minting a
// new one on every page load.
type Revealer interface {
	Reveal(secret []byte) ([]byte, bool)
}

// Option configures an AEAD cipher.
type Option func(*aeadCipher)

// WithTokenSize sets the token length in bytes.
// It panics if size is below MinTokenSize.
func WithTokenSize(size int) Option {
	if size < MinTokenSize {
		panic(fmt.Sprintf("csrf: token size must be at least %d, got %d", MinTokenSize, size))
	}
	return func(c *aeadCipher) {
		c.tokenSize = size
	}
}

// WithRandom sets the source of random bytes. The reader must be safe for
// concurrent use when the cipher is shared. Defaults to crypto/rand.Reader.
func WithRandom(r io.Reader) Option {
	return func(c *aeadCipher) {
		if r != nil {
			c.random = r
		}
	}
}

// aeadCipher implements Cipher on top of any 12-byte-nonce AEAD.
type aeadCipher struct {
	aead      cipher.AEAD
	tokenSize int
	random    io.Reader
}

func newAEADCipher(aead cipher.AEAD, opts []Option) *aeadCipher {
	c := &aeadCipher{
		aead:      aead,
		tokenSize: DefaultTokenSize,
		random:    rand.Reader,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TokenSize returns the configured token length.
func (c *aeadCipher) TokenSize() int {
	return c.tokenSize
}

// Generate implements Cipher.
func (c *aeadCipher) Generate() (token, secret []byte, err error) {
	token = make([]byte, c.tokenSize)
	if _, err := io.ReadFull(c.random, token); err != nil {
		return nil, nil, fmt.Errorf("failed to read token bytes: %w", err)
	}

	secret = make([]byte, NonceSize, NonceSize+c.tokenSize+c.aead.Overhead())
	if _, err := io.ReadFull(c.random, secret); err != nil {
		return nil, nil, fmt.Errorf("failed to read nonce bytes: %w", err)
	}

	secret = c.aead.Seal(secret, secret[:NonceSize], token, nil)
	return token, secret, nil
}

// Verify implements Cipher.
func (c *aeadCipher) Verify(token, secret []byte) bool {
	if len(token) < MinTokenSize {
		return false
	}

	plaintext, ok := c.Reveal(secret)
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare(plaintext, token) == 1
}

// Reveal implements Revealer.
func (c *aeadCipher) Reveal(secret []byte) ([]byte, bool) {
	if len(secret) < minSecretSize {
		return nil, false
	}

	plaintext, err := c.aead.Open(nil, secret[:NonceSize], secret[NonceSize:], nil)
	if err != nil {
		return nil, false
	}

	return plaintext, true
}
