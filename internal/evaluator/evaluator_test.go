package evaluator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stencilgo/internal/environment"
	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/graph"
	"github.com/vk/stencilgo/internal/template"
)

// evaluate runs load, resolve, build, and the evaluation pass over a
// single-file template.
func evaluate(t *testing.T, source string, params map[string]string) (*Result, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(source), 0644))

	ctx := context.Background()
	tpl, err := template.Load(ctx, dir, 0)
	require.NoError(t, err)

	funcs := expr.DefaultFunctions()
	env, err := environment.Resolve(ctx, tpl, params, funcs)
	require.NoError(t, err)

	g, err := graph.Build(ctx, tpl)
	require.NoError(t, err)

	return Evaluate(ctx, tpl, env, g, funcs)
}

func TestEvaluate_ConditionGatesInclusion(t *testing.T) {
	t.Parallel()

	source := `
param "env" {
  type    = string
  default = "Development"
}

resource "storage" "audit" {
  condition = param.env == "Production"
}

resource "storage" "main" {}
`
	res, err := evaluate(t, source, map[string]string{"env": "Production"})
	require.NoError(t, err)
	assert.True(t, res.Nodes["resource.audit"].Included)
	assert.True(t, res.Nodes["resource.main"].Included)

	res, err = evaluate(t, source, map[string]string{"env": "Development"})
	require.NoError(t, err)
	assert.False(t, res.Nodes["resource.audit"].Included)
	assert.True(t, res.Nodes["resource.main"].Included)
}

func TestEvaluate_NameDefaultsToLabel(t *testing.T) {
	t.Parallel()

	source := `
resource "storage" "primary" {}

resource "storage" "renamed" {
  name = "explicit-name"
}
`
	res, err := evaluate(t, source, nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", res.Nodes["resource.primary"].Name)
	assert.Equal(t, "explicit-name", res.Nodes["resource.renamed"].Name)
}

func TestEvaluate_ExcludedNodesStillEvaluateProperties(t *testing.T) {
	t.Parallel()

	// An excluded node's properties are still computed. A bad expression
	// inside it fails the run even though the node never deploys.
	source := `
resource "storage" "off" {
  condition = false
  properties {
    tier = undeclared.thing
  }
}
`
	_, err := evaluate(t, source, nil)
	require.Error(t, err)
}

func TestEvaluate_UnguardedReferenceIsFatal(t *testing.T) {
	t.Parallel()

	source := `
param "env" {
  type    = string
  default = "Development"
}

resource "storage" "audit" {
  condition = param.env == "Production"
  properties {
    endpoint = "audit-endpoint"
  }
}

resource "app" "web" {
  properties {
    audit_url = resource.audit.endpoint
  }
}
`
	_, err := evaluate(t, source, map[string]string{"env": "Development"})
	require.Error(t, err)

	var unguarded *UnguardedReferenceError
	require.ErrorAs(t, err, &unguarded)
	assert.Equal(t, "resource.web", unguarded.Consumer.String())
	assert.Equal(t, "audit_url", unguarded.Property)
}

func TestEvaluate_GuardedReferenceIsTolerated(t *testing.T) {
	t.Parallel()

	source := `
param "env" {
  type    = string
  default = "Development"
}

resource "storage" "audit" {
  condition = param.env == "Production"
  properties {
    endpoint = "audit-endpoint"
  }
}

resource "app" "web" {
  properties {
    audit_url = param.env == "Production" ? resource.audit.endpoint : "none"
  }
}
`
	res, err := evaluate(t, source, map[string]string{"env": "Development"})
	require.NoError(t, err)

	props := res.Nodes["resource.web"].Properties
	assert.Equal(t, "none", props.GetAttr("audit_url").AsString())
}

func TestEvaluate_GuardSelectingUnavailableBranchIsFatal(t *testing.T) {
	t.Parallel()

	// The guard condition holds, so the unavailable branch is the chosen
	// one. Nothing can absorb that.
	source := `
param "env" {
  type    = string
  default = "Development"
}

resource "storage" "audit" {
  condition = param.env == "Production"
  properties {
    endpoint = "audit-endpoint"
  }
}

resource "app" "web" {
  properties {
    audit_url = param.env == "Development" ? resource.audit.endpoint : "none"
  }
}
`
	_, err := evaluate(t, source, map[string]string{"env": "Development"})
	require.Error(t, err)

	var unguarded *UnguardedReferenceError
	require.ErrorAs(t, err, &unguarded)
}

func TestEvaluate_ModuleConditionCascades(t *testing.T) {
	t.Parallel()

	source := `
param "enabled" {
  type    = bool
  default = false
}

module "network" {
  condition = param.enabled

  resource "vnet" "main" {}

  resource "subnet" "internal" {
    condition = true
  }
}
`
	res, err := evaluate(t, source, nil)
	require.NoError(t, err)

	assert.False(t, res.Nodes["module.network"].Included)
	assert.False(t, res.Nodes["resource.main"].Included)
	assert.False(t, res.Nodes["resource.internal"].Included)

	// Members inherit the group's gating references for guard matching.
	assert.Contains(t, res.Nodes["resource.main"].ConditionRefs, "param.enabled")
}

func TestEvaluate_OrderFollowsDependencies(t *testing.T) {
	t.Parallel()

	source := `
resource "app" "web" {
  properties {
    conn = resource.db.endpoint
  }
}

resource "database" "db" {
  properties {
    endpoint = "db:5432"
  }
}
`
	res, err := evaluate(t, source, nil)
	require.NoError(t, err)
	require.Len(t, res.Order, 2)
	assert.Equal(t, "resource.db", res.Order[0].String())
	assert.Equal(t, "resource.web", res.Order[1].String())
}

func TestEvaluate_PropertiesCarryResolvedName(t *testing.T) {
	t.Parallel()

	source := `
resource "storage" "primary" {
  name = "prod-storage"
}

resource "app" "web" {
  properties {
    bucket = resource.primary.name
  }
}
`
	res, err := evaluate(t, source, nil)
	require.NoError(t, err)

	props := res.Nodes["resource.web"].Properties
	assert.Equal(t, "prod-storage", props.GetAttr("bucket").AsString())
}
