package crypto

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	jerrors "github.com/illarion/jarida/internal/errors"
	"golang.org/x/crypto/argon2"
)

const (
	KeySize  = 32 // AES-256 key size
	SaltSize = 16 // Journal salt size

	kdfDomain = "jarida/v1"
)

// KDFParams are the Argon2id cost parameters. They are stored in the
// journal so an existing journal keeps deriving the same key.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDFParams is used for new journals.
var DefaultKDFParams = KDFParams{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
}

// Validate rejects parameters argon2 cannot run with or that are too weak
// to be meaningful.
func (p KDFParams) Validate() error {
	if p.Time == 0 || p.Threads == 0 {
		return fmt.Errorf("invalid kdf parameters: time=%d threads=%d", p.Time, p.Threads)
	}
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("invalid kdf parameters: memory %d KiB below minimum for %d threads", p.Memory, p.Threads)
	}
	return nil
}

func (p KDFParams) String() string {
	return fmt.Sprintf("argon2id t=%d m=%dKiB p=%d", p.Time, p.Memory, p.Threads)
}

// Credentials hold the username and password for the lifetime of one key
// derivation. Call Clear as soon as the key has been produced.
type Credentials struct {
	Username []byte
	Password []byte
}

// NewCredentials copies username and takes ownership of password.
func NewCredentials(username string, password []byte) *Credentials {
	return &Credentials{
		Username: []byte(username),
		Password: password,
	}
}

// Validate checks that both parts are present and the username is printable UTF-8
func (c *Credentials) Validate() error {
	if c == nil || len(c.Username) == 0 {
		return fmt.Errorf("%w: username is empty", jerrors.ErrInvalidCredentials)
	}
	if len(c.Password) == 0 {
		return fmt.Errorf("%w: password is empty", jerrors.ErrInvalidCredentials)
	}
	if !utf8.Valid(c.Username) {
		return fmt.Errorf("%w: username is not valid UTF-8", jerrors.ErrInvalidCredentials)
	}
	for _, r := range string(c.Username) {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: username contains control characters", jerrors.ErrInvalidCredentials)
		}
	}
	return nil
}

// Clear zeroes both username and password
func (c *Credentials) Clear() {
	if c == nil {
		return
	}
	ClearBytes(c.Username)
	ClearBytes(c.Password)
}

// Key is derived symmetric key material
type Key []byte

// Destroy zeroes the key
func (k Key) Destroy() {
	ClearBytes(k)
}

// Deriver turns credentials into a Key. The zero Salt is allowed and gives
// the fixed, publicly known scheme with no per-journal salt.
type Deriver struct {
	Params KDFParams
	Salt   []byte
}

// NewSalt generates a random journal salt
func NewSalt() ([]byte, error) {
	return GenerateRandom(SaltSize)
}

// Derive runs Argon2id over the credentials. It is deterministic: the same
// credentials, params and salt always give the same key. A wrong password
// is not detected here.
func (d Deriver) Derive(c *Credentials) (Key, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := d.Params.Validate(); err != nil {
		return nil, err
	}

	salt := d.salt(c.Username)
	defer ClearBytes(salt)

	key := argon2.IDKey(c.Password, salt, d.Params.Time, d.Params.Memory, d.Params.Threads, KeySize)
	return Key(key), nil
}

func (d Deriver) salt(username []byte) []byte {
	salt := make([]byte, 0, len(kdfDomain)+len(d.Salt)+1+len(username))
	salt = append(salt, kdfDomain...)
	salt = append(salt, d.Salt...)
	salt = append(salt, 0)
	salt = append(salt, username...)
	return salt
}
