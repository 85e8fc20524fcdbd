package storage

import (
	"time"
)

// IndexEntry is the unencrypted record kept for each entry file
type IndexEntry struct {
	ID       string    `json:"id"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// KDFRecord stores the key derivation algorithm and its parameters
type KDFRecord struct {
	Algorithm string `json:"algorithm"`
	Time      uint32 `json:"time"`
	Memory    uint32 `json:"memory"`
	Threads   uint8  `json:"threads"`
}

// Argon2ID names the only supported algorithm
const Argon2ID = "argon2id"
