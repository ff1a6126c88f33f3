package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const returnOnlyFixture = `
functions:
  - name: noop
    blocks:
      - id: 1
        instructions:
          - op: Return
`

func TestDumpCommandPrintsTranslatedFunction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(returnOnlyFixture), 0o644))

	var out bytes.Buffer
	cmd := NewDumpCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "; noop")
	assert.Contains(t, out.String(), "ret")
}

func TestDumpCommandRejectsMissingFile(t *testing.T) {
	cmd := NewDumpCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	assert.Error(t, cmd.Execute())
}
