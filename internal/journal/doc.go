// Package journal locates and creates journal roots.
//
// A directory is a journal root iff it contains a .jarida directory.
// Layout under a root:
//
//	.jarida/            marker; holds journal.db and config.toml
//	entries/<EntryId>   one encrypted file per entry
//
// Locate walks from a start directory up to the filesystem root and
// returns the nearest marked directory. When no ancestor is marked it
// falls back to the home directory.
package journal
