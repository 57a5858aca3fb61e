//go:build linux

package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatm(t *testing.T) {
	t.Parallel()

	b, e := parseStatm([]byte("5000 1200 300 10 0 900 0\n"), 4096)
	require.NoError(t, e)
	assert.Equal(t, int64(1200*4096), b)

	_, e = parseStatm([]byte("5000"), 4096)
	assert.Error(t, e)

	_, e = parseStatm([]byte("5000 x"), 4096)
	assert.Error(t, e)
}
