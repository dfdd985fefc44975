package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfoShortensCommit(t *testing.T) {
	oldVersion, oldCommit := Version, CommitHash
	t.Cleanup(func() { Version, CommitHash = oldVersion, oldCommit })

	Version, CommitHash = "v1.4.0", "0123456789abcdef"
	assert.Equal(t, "v1.4.0 (0123456)", GetInfo())

	b := Get()
	assert.Equal(t, "0123456789abcdef", b.Commit)
	assert.Equal(t, runtime.Version(), b.GoVersion)
}

func TestGetInfoWithoutCommit(t *testing.T) {
	oldVersion, oldCommit := Version, CommitHash
	t.Cleanup(func() { Version, CommitHash = oldVersion, oldCommit })

	Version = "dev"
	CommitHash = ""
	assert.True(t, strings.HasPrefix(GetInfo(), "dev"))
}
