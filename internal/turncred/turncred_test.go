package turncred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateKnownVector pins the credential output for a fixed clock
// and secret, so drift from the coturn algorithm is caught.
func TestGenerateKnownVector(t *testing.T) {
	g, err := NewGenerator("north", time.Hour)
	require.NoError(t, err)
	g.now = func() time.Time { return time.Unix(1700000000, 0) }

	creds, err := g.Generate("abc123")
	require.NoError(t, err)

	assert.Equal(t, "1700003600:abc123", creds.Username)
	assert.Equal(t, int64(1700003600), creds.ExpiryUnix)
	// base64(hmac_sha1("north", "1700003600:abc123"))
	assert.Equal(t, "Kb2LNHW+/icJOttqfWpkrd41mNk=", creds.Credential)
}

func TestGenerateRandomUnique(t *testing.T) {
	g, err := NewGenerator("north", time.Hour)
	require.NoError(t, err)

	a, err := g.GenerateRandom()
	require.NoError(t, err)
	b, err := g.GenerateRandom()
	require.NoError(t, err)

	assert.NotEqual(t, a.Username, b.Username)
}

func TestNewGeneratorRejectsBadConfig(t *testing.T) {
	_, err := NewGenerator("", time.Hour)
	assert.Error(t, err)

	_, err = NewGenerator("north", 0)
	assert.Error(t, err)
}
