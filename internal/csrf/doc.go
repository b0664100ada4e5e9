// Package csrf implements an anti-forgery token scheme based on
// authenticated encryption.
//
// A Cipher generates a random token and seals it under a fixed key with a
// fresh nonce; the sealed value is the secret. The server hands the secret
// to the client in a cookie and the token in the page or a response header.
// On state-changing requests the client sends both back and Verify checks
// that the secret opens to exactly the submitted token.
//
// Two ciphers share the same layout (nonce || ciphertext || tag):
//
//   - CCPCipher: ChaCha20-Poly1305
//   - AESGCMCipher: AES-256-GCM
//
// Verification never reports why it failed.
package csrf
