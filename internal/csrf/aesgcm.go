package csrf

import (
	"crypto/aes"
	"crypto/cipher"
)

// AESGCMCipher protects tokens with AES-256-GCM. It has the same wire
// layout as CCPCipher.
type AESGCMCipher struct {
	*aeadCipher
}

var _ Cipher = (*AESGCMCipher)(nil)

// NewAESGCMCipher returns an AES-256-GCM cipher keyed with key.
func NewAESGCMCipher(key [KeySize]byte, opts ...Option) *AESGCMCipher {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic("csrf: " + err.Error())
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic("csrf: " + err.Error())
	}

	return &AESGCMCipher{aeadCipher: newAEADCipher(aead, opts)}
}
