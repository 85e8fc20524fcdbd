package crypto

import (
	"testing"

	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastParams keeps argon2 cheap in tests
var fastParams = KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1}

func creds(user, pass string) *Credentials {
	return NewCredentials(user, []byte(pass))
}

func TestDerive_Deterministic(t *testing.T) {
	d := Deriver{Params: fastParams, Salt: []byte("0123456789abcdef")}

	k1, err := d.Derive(creds("alice", "hunter2"))
	require.NoError(t, err)
	k2, err := d.Derive(creds("alice", "hunter2"))
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
}

func TestDerive_InputsChangeKey(t *testing.T) {
	base := Deriver{Params: fastParams, Salt: []byte("0123456789abcdef")}
	ref, err := base.Derive(creds("alice", "hunter2"))
	require.NoError(t, err)

	otherPass, err := base.Derive(creds("alice", "hunter3"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, otherPass)

	otherUser, err := base.Derive(creds("bob", "hunter2"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, otherUser)

	otherSalt := Deriver{Params: fastParams, Salt: []byte("fedcba9876543210")}
	k, err := otherSalt.Derive(creds("alice", "hunter2"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, k)
}

func TestDerive_UsernamePasswordBoundary(t *testing.T) {
	// "ab"/"c" and "a"/"bc" must not collide
	d := Deriver{Params: fastParams}
	k1, err := d.Derive(creds("ab", "c"))
	require.NoError(t, err)
	k2, err := d.Derive(creds("a", "bc"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestDerive_InvalidCredentials(t *testing.T) {
	d := Deriver{Params: fastParams}

	tests := []struct {
		name  string
		creds *Credentials
	}{
		{"nil", nil},
		{"empty username", creds("", "pw")},
		{"empty password", creds("alice", "")},
		{"invalid utf8", &Credentials{Username: []byte{0xff, 0xfe}, Password: []byte("pw")}},
		{"control char", creds("ali\nce", "pw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Derive(tt.creds)
			assert.ErrorIs(t, err, jerrors.ErrInvalidCredentials)
		})
	}
}

func TestDerive_InvalidParams(t *testing.T) {
	d := Deriver{Params: KDFParams{Time: 0, Memory: 1024, Threads: 1}}
	_, err := d.Derive(creds("alice", "pw"))
	assert.Error(t, err)
}

func TestCredentialsClear(t *testing.T) {
	c := creds("alice", "secret")
	c.Clear()
	assert.Equal(t, make([]byte, 5), c.Username)
	assert.Equal(t, make([]byte, 6), c.Password)
}

func TestKeyDestroy(t *testing.T) {
	d := Deriver{Params: fastParams}
	k, err := d.Derive(creds("alice", "pw"))
	require.NoError(t, err)
	k.Destroy()
	assert.Equal(t, Key(make([]byte, KeySize)), k)
}
