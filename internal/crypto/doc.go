// Package crypto provides key derivation and entry encryption for jarida.
//
// Key derivation uses Argon2id with:
//   - parameters stored per journal (default: 3 passes, 64 MiB, 4 lanes)
//   - salt = "jarida/v1" || journal salt || 0x00 || username
//   - 32-byte output (AES-256 key)
//
// Encryption uses AES-256-GCM with:
//   - 12-byte random nonce per encryption operation
//   - the entry id as associated data, so ciphertexts cannot be swapped
//     between entries
//   - layout nonce || ciphertext || tag
//
// Every decryption failure is reported as errors.ErrDecryptionFailed.
//
// Memory safety:
//   - Credentials.Clear() zeroes the username and password
//   - Key.Destroy() zeroes key material
package crypto
