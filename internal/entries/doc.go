// Package entries stores journal entries as individually encrypted files.
//
// Each entry lives in <root>/entries/<id>, where id is the creation time
// at second resolution with an optional sequence suffix. File content is
// the sealed blob nonce || ciphertext || tag, authenticated together with
// the id so that moving a blob to another name is detected on read.
//
// New entries are published by atomic rename. Id allocation runs while the
// journal database is open read-write, which holds its exclusive lock.
package entries
