package capture

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := &Progress{w: &out, active: true}
	p.Update(1)
	p.Update(12)
	p.Finish()
	assert.Equal(t, "\r1\r12\n", out.String())
}

func TestProgressInactive(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	require.NoError(t, err)
	defer f.Close()

	for _, p := range []*Progress{NewProgress(f, false), NewProgress(os.Stderr, true), nil} {
		assert.False(t, p.Active())
		p.Update(3)
		p.Finish()
	}

	fi, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
}
