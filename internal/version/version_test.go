package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })

	Version, GitCommit, BuildTime = "1.2.3", "abc123", "2026-01-02T03:04:05Z"
	assert.Equal(t, "gazetrack 1.2.3 (commit abc123, built 2026-01-02T03:04:05Z)", String("gazetrack"))
}
