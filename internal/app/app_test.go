package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_RequiresTemplatePath(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})
	require.Error(t, err)

	cfg, err := NewConfig(Config{TemplatePath: "x.hcl"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxNodes, cfg.MaxNodes)
}

func TestRun_RendersPlanSummary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := `
param "env" {
  type    = string
  default = "Development"
}

resource "storage" "audit" {
  condition = param.env == "Production"
}

resource "app" "web" {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(source), 0644))

	cfg, err := NewConfig(Config{
		TemplatePath: dir,
		LogLevel:     "error",
		LogFormat:    "text",
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	application := NewApp(out, cfg, nil)
	require.NoError(t, application.Run(context.Background()))

	rendered := out.String()
	assert.Contains(t, rendered, "Plan ")
	assert.Contains(t, rendered, `+ create app "web" (resource.web)`)
	assert.Contains(t, rendered, "- skip resource.audit")
	assert.Contains(t, rendered, "1 to create, 1 skipped.")
}

func TestPlan_MergesFileAndFlagParams(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := `
param "env" {
  type = string
}

param "region" {
  type = string
}

resource "app" "web" {
  properties {
    env    = param.env
    region = param.region
  }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(source), 0644))

	paramsFile := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsFile, []byte("env: Staging\nregion: east\n"), 0644))

	cfg, err := NewConfig(Config{
		TemplatePath: dir,
		ParamsFile:   paramsFile,
		// The CLI flag wins over the file value for env.
		Params:   map[string]string{"env": "Production"},
		LogLevel: "error",
	})
	require.NoError(t, err)

	application := NewApp(&bytes.Buffer{}, cfg, nil)
	plan, err := application.Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	props := plan.Operations[0].Properties
	assert.Equal(t, "Production", props.GetAttr("env").AsString())
	assert.Equal(t, "east", props.GetAttr("region").AsString())
}
