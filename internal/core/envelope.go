package core

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// headerFence opens and closes the metadata block sealed in front of an
// entry's text:
//
//	+++
//	author = "alice"
//	+++
//	text...
const headerFence = "+++\n"

// entryHeader is metadata encrypted together with the entry text
type entryHeader struct {
	Author string `toml:"author"`
}

// encodeEntry prepends the header to content. The result holds plaintext
// and must be cleared by the caller.
func encodeEntry(h entryHeader, content []byte) ([]byte, error) {
	var head bytes.Buffer
	if err := toml.NewEncoder(&head).Encode(h); err != nil {
		return nil, fmt.Errorf("failed to encode entry header: %w", err)
	}

	out := make([]byte, 0, 2*len(headerFence)+head.Len()+len(content))
	out = append(out, headerFence...)
	out = append(out, head.Bytes()...)
	out = append(out, headerFence...)
	return append(out, content...), nil
}

// decodeEntry splits decrypted data into header and text. Data without a
// header block is all text. The returned text aliases plain.
func decodeEntry(plain []byte) (entryHeader, []byte) {
	var h entryHeader
	if !bytes.HasPrefix(plain, []byte(headerFence)) {
		return h, plain
	}

	// The closing fence starts a line of its own
	start := len(headerFence) - 1
	end := bytes.Index(plain[start:], []byte("\n"+headerFence))
	if end < 0 {
		return h, plain
	}
	end += start + 1

	if _, err := toml.Decode(string(plain[len(headerFence):end]), &h); err != nil {
		return entryHeader{}, plain
	}
	return h, plain[end+len(headerFence):]
}
