package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-indexqueue/internal/config"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/work"
)

const workYAML = `
items:
  - type: document
    id: "1"
    kind: add
    entity:
      title: Design doc
  - type: document
    id: "2"
    kind: update
    entity:
      title: RFC
batches:
  - cancel: true
    items:
      - type: document
        id: "3"
        kind: add
        entity:
          title: Abandoned
  - items:
      - type: document
        id: "1"
        kind: delete
      - type: project
        kind: purge_all
`

func newTestCommand(t *testing.T, files map[string]string) (*Command, *cli.MockUi) {
	t.Helper()

	t.Setenv(config.EnvBackend, "")
	t.Setenv(config.EnvExecution, "")

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	ui := cli.NewMockUi()
	b := base.NewCommand(hclog.NewNullLogger(), ui)
	b.Fs = fs

	return &Command{Command: b}, ui
}

func TestRun_DryRun(t *testing.T) {
	c, ui := newTestCommand(t, map[string]string{"work.yaml": workYAML})

	code := c.Run([]string{"-dry-run", "work.yaml"})
	require.Equal(t, 0, code, ui.ErrorWriter.String())

	var ops, progress []string
	for _, line := range strings.Split(strings.TrimSpace(ui.OutputWriter.String()), "\n") {
		if strings.HasPrefix(line, "Batch ") {
			progress = append(progress, line)
			continue
		}
		ops = append(ops, line)
	}

	assert.Equal(t, []string{
		"add document/1",
		"delete document/2",
		"add document/2",
		"delete document/1",
		"purge_all project",
	}, ops)
	assert.Equal(t, []string{
		"Batch 1: performed 3 operations",
		"Batch 2: cancelled 1 items",
		"Batch 3: performed 2 operations",
	}, progress)
}

func TestRun_Bleve(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
worker {
  backend = "bleve"
}

bleve {
  index_path = "`+filepath.ToSlash(filepath.Join(dir, "index"))+`"
}

entity "document" {
  index = "docs"
}
`), 0o600))

	c, ui := newTestCommand(t, map[string]string{"work.json": `{
  "items": [
    {"type": "document", "id": "1", "kind": "add", "entity": {"title": "one"}},
    {"type": "comment", "id": "c1", "kind": "add", "entity": {"body": "skipped"}}
  ]
}`})

	code := c.Run([]string{"-config", cfgPath, "work.json"})
	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Contains(t, ui.OutputWriter.String(), "Batch 1: performed 1 operations")

	_, err := os.Stat(filepath.Join(dir, "index", "docs.bleve"))
	assert.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		args   []string
		errMsg string
	}{
		{
			name:   "no file",
			args:   []string{},
			errMsg: "a single work file is required",
		},
		{
			name:   "missing file",
			args:   []string{"missing.yaml"},
			errMsg: "failed to read work file",
		},
		{
			name:   "unsupported format",
			files:  map[string]string{"work.txt": ""},
			args:   []string{"work.txt"},
			errMsg: "unsupported work file format",
		},
		{
			name:   "unknown kind",
			files:  map[string]string{"work.yaml": "items:\n  - type: document\n    id: \"1\"\n    kind: upsert\n"},
			args:   []string{"work.yaml"},
			errMsg: "batch 1 item 1",
		},
		{
			name:   "missing config",
			files:  map[string]string{"work.yaml": workYAML},
			args:   []string{"-config", "/does/not/exist.hcl", "work.yaml"},
			errMsg: "configuration file not found",
		},
		{
			name:   "add without entity",
			files:  map[string]string{"work.yaml": "items:\n  - type: document\n    id: \"1\"\n    kind: add\n"},
			args:   []string{"-dry-run", "work.yaml"},
			errMsg: "batch 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ui := newTestCommand(t, tt.files)
			assert.Equal(t, 1, c.Run(tt.args))
			assert.Contains(t, ui.ErrorWriter.String(), tt.errMsg)
		})
	}
}

func TestLoadWorkFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "work.yml", []byte(workYAML), 0o644))

	batches, err := loadWorkFile(fs, "work.yml")
	require.NoError(t, err)
	require.Len(t, batches, 3)

	assert.False(t, batches[0].cancel)
	assert.True(t, batches[1].cancel)
	require.Len(t, batches[2].works, 2)
	assert.Equal(t, work.PurgeAll, batches[2].works[1].Kind)
	assert.Nil(t, batches[2].works[0].Entity)
	assert.Equal(t, map[string]any{"title": "Design doc"}, batches[0].works[0].Entity)

	assert.Equal(t, []string{"document", "project"}, entityTypes(batches))
}

func TestHelp(t *testing.T) {
	c, _ := newTestCommand(t, nil)
	assert.Contains(t, c.Help(), "-dry-run")
	assert.Contains(t, c.Help(), "-config=<string>")
}
