// Package errors defines the sentinel errors shared by the jarida storage
// engine.
//
// Every error returned by the crypto, journal, entries and core packages
// wraps one of these values, so the CLI layer can branch with errors.Is:
//
//	if errors.Is(err, jerrors.ErrDecryptionFailed) {
//	    // generic "check username and password" message
//	}
//
// ErrDecryptionFailed is deliberately the only outcome of a failed
// decryption. Wrong credentials, a truncated file and a modified file are
// indistinguishable to the caller.
package errors
