package csrf

import (
	"golang.org/x/crypto/chacha20poly1305"
)

// CCPCipher protects tokens with ChaCha20-Poly1305.
//
// The secret is nonce || ciphertext || tag, so its length is
// NonceSize + token size + TagSize.
type CCPCipher struct {
	*aeadCipher
}

var _ Cipher = (*CCPCipher)(nil)

// NewCCPCipher returns a ChaCha20-Poly1305 cipher keyed with key.
func NewCCPCipher(key [KeySize]byte, opts ...Option) *CCPCipher {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		// Unreachable: the key length is fixed by the type.
		panic("csrf: " + err.Error())
	}

	return &CCPCipher{aeadCipher: newAEADCipher(aead, opts)}
}
