// Package storage provides the BBolt journal database for jarida.
//
// The database lives at .jarida/journal.db and uses three buckets:
//   - config: KDF parameters, journal salt, journal id, timestamps (unencrypted)
//   - index: entry ids with size and timestamps (unencrypted, for status)
//   - private: the encrypted password verifier
//
// Entry contents never enter the database; they are files under entries/.
//
// Opening the database read-write takes an exclusive file lock that is held
// until Close. Writers use it to serialize entry id allocation across
// processes.
package storage
