// Package core provides the journal operations behind the jarida commands.
//
// A Journal is a located journal root. Operations that only need the
// unencrypted layout (List, Status, Reindex, Compact) work on it directly.
// Everything that reads or writes entry content goes through a Session:
//
//   - Init: Create the journal layout, salt, KDF parameters and verifier
//   - Unlock: Derive the key from credentials and check it against the verifier
//   - Session.NewEntry / ShowEntry / EditEntry / RemoveEntry: Entry operations
//   - Session.ChangeCredentials: Re-encrypt every entry under a new key
//
// A Session holds the journal database lock and the derived key. Close
// destroys the key and must be called on every path.
package core
