package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKeyRoundTrip(t *testing.T) {
	key := LockKey{ProjectID: "p1", FileID: "f1"}
	assert.Equal(t, "p1:f1", key.String())

	parsed, err := ParseLockKey("p1:f1")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	// File ids may themselves contain the separator.
	parsed, err = ParseLockKey("p1:src:main.go")
	require.NoError(t, err)
	assert.Equal(t, LockKey{ProjectID: "p1", FileID: "src:main.go"}, parsed)
}

func TestParseLockKeyRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{"", "p1", "p1:", ":f1"} {
		_, err := ParseLockKey(input)
		assert.Error(t, err, "input %q", input)
	}
}
