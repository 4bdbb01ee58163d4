package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v1.2.3"
	got := String()
	assert.Contains(t, got, "sitesmith v1.2.3")
	assert.Contains(t, got, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, got, "commit "+GitCommit)
}
