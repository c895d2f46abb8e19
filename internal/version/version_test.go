package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	prevV, prevSHA, prevTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = prevV, prevSHA, prevTime })

	assert.Equal(t, "laptrack dev (commit unknown, built unknown)", String("laptrack"))

	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2024-05-01T00:00:00Z"
	assert.Equal(t, "laptrack 1.2.0 (commit abc123, built 2024-05-01T00:00:00Z)", String("laptrack"))
}
