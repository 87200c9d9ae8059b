package expr

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stencilgo/internal/nodeid"
)

// parseExpr is a test helper turning source text into a syntax expression.
func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "parse %q: %s", src, diags.Error())
	return e
}

// fakeNodes is a NodeReader over a fixed map.
type fakeNodes map[nodeid.Address]NodeValue

func (f fakeNodes) NodeValue(addr nodeid.Address) (NodeValue, bool) {
	nv, ok := f[addr]
	return nv, ok
}

func (f fakeNodes) NodeLabels(kind nodeid.Kind) []string {
	var labels []string
	for addr := range f {
		if addr.Kind == kind {
			labels = append(labels, addr.Label)
		}
	}
	return labels
}

func testScope() *Scope {
	return &Scope{
		Params: map[string]cty.Value{
			"env":   cty.StringVal("Production"),
			"count": cty.NumberIntVal(3),
		},
		Variables: map[string]cty.Value{
			"prefix": cty.StringVal("audit"),
		},
		Functions: DefaultFunctions(),
	}
}

func TestEvaluateScalars(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		expected cty.Value
	}{
		{"string literal", `"hello"`, cty.StringVal("hello")},
		{"number literal", `42`, cty.NumberIntVal(42)},
		{"bool literal", `true`, cty.True},
		{"param lookup", `param.env`, cty.StringVal("Production")},
		{"variable lookup", `var.prefix`, cty.StringVal("audit")},
		{"equality true", `param.env == "Production"`, cty.True},
		{"equality false", `param.env == "Development"`, cty.False},
		{"inequality", `param.count != 3`, cty.False},
		{"comparison", `param.count > 1`, cty.True},
		{"arithmetic", `param.count + 1`, cty.NumberIntVal(4)},
		{"logical and", `param.count > 1 && param.env == "Production"`, cty.True},
		{"negation", `!(param.env == "Production")`, cty.False},
		{"ternary true branch", `param.env == "Production" ? "a" : "b"`, cty.StringVal("a")},
		{"ternary false branch", `param.env == "Development" ? "a" : "b"`, cty.StringVal("b")},
		{"interpolation", `"${var.prefix}stg"`, cty.StringVal("auditstg")},
		{"function call", `upper(var.prefix)`, cty.StringVal("AUDIT")},
		{"nested call", `format("%s-%d", upper(param.env), param.count)`, cty.StringVal("PRODUCTION-3")},
		{"tuple", `[1, 2]`, cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)})},
		{"index", `["a", "b"][1]`, cty.StringVal("b")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(parseExpr(t, tc.src), testScope())
			require.NoError(t, err)
			assert.True(t, tc.expected.RawEquals(got), "expected %#v, got %#v", tc.expected, got)
		})
	}
}

func TestEvaluateObject(t *testing.T) {
	got, err := Evaluate(parseExpr(t, `{ sku = "Standard_LRS", tier = upper("hot") }`), testScope())
	require.NoError(t, err)
	expected := cty.ObjectVal(map[string]cty.Value{
		"sku":  cty.StringVal("Standard_LRS"),
		"tier": cty.StringVal("HOT"),
	})
	assert.True(t, expected.RawEquals(got))
}

func TestEvaluateErrors(t *testing.T) {
	t.Run("undeclared param suggests close name", func(t *testing.T) {
		_, err := Evaluate(parseExpr(t, `param.env2`), testScope())
		var invalidErr *InvalidExpressionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, "env", invalidErr.Suggestion)
	})

	t.Run("unknown function suggests close name", func(t *testing.T) {
		_, err := Evaluate(parseExpr(t, `uper("x")`), testScope())
		var invalidErr *InvalidExpressionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, "upper", invalidErr.Suggestion)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		_, err := Evaluate(parseExpr(t, `output.foo`), testScope())
		var invalidErr *InvalidExpressionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Contains(t, invalidErr.Detail, "unknown reference namespace")
	})

	t.Run("node reference out of context", func(t *testing.T) {
		_, err := Evaluate(parseExpr(t, `resource.audit.endpoint`), testScope())
		var invalidErr *InvalidExpressionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Contains(t, invalidErr.Detail, "not allowed in this context")
	})

	t.Run("non-boolean condition", func(t *testing.T) {
		_, err := EvaluateBool(parseExpr(t, `"yes"`), testScope())
		require.Error(t, err)
	})
}

func TestEvaluateNodeReferences(t *testing.T) {
	auditAddr := nodeid.NewResource("audit")
	scope := testScope()
	scope.Nodes = fakeNodes{
		auditAddr: {
			Value: cty.ObjectVal(map[string]cty.Value{
				"name":     cty.StringVal("auditstg"),
				"endpoint": cty.StringVal("https://audit.blob.example.net"),
			}),
		},
	}

	t.Run("included node property resolves", func(t *testing.T) {
		got, err := Evaluate(parseExpr(t, `resource.audit.endpoint`), scope)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("https://audit.blob.example.net"), got)
	})

	t.Run("unknown property suggests close name", func(t *testing.T) {
		_, err := Evaluate(parseExpr(t, `resource.audit.endpont`), scope)
		var invalidErr *InvalidExpressionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, "endpoint", invalidErr.Suggestion)
	})

	t.Run("undeclared node suggests close label", func(t *testing.T) {
		_, err := Evaluate(parseExpr(t, `resource.audyt.endpoint`), scope)
		var invalidErr *InvalidExpressionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, "audit", invalidErr.Suggestion)
	})
}

func TestEagerTernaryHazard(t *testing.T) {
	auditAddr := nodeid.NewResource("audit")
	excluded := fakeNodes{
		auditAddr: {
			Value:         cty.ObjectVal(map[string]cty.Value{"endpoint": cty.StringVal("unreachable")}),
			Excluded:      true,
			ConditionRefs: []string{"param.env"},
		},
	}

	t.Run("excluded reference fails bare", func(t *testing.T) {
		scope := testScope()
		scope.Nodes = excluded
		_, err := Evaluate(parseExpr(t, `resource.audit.endpoint`), scope)
		var refErr *ReferenceUnavailableError
		require.ErrorAs(t, err, &refErr)
		assert.Equal(t, auditAddr, refErr.Node)
		assert.Equal(t, []string{"endpoint"}, refErr.Path)
	})

	t.Run("unguarded ternary still fails", func(t *testing.T) {
		// The guard condition references param.count, not the gating
		// param.env, so the eagerly-evaluated branch error propagates.
		scope := testScope()
		scope.Nodes = excluded
		_, err := Evaluate(parseExpr(t, `param.count > 99 ? resource.audit.endpoint : ""`), scope)
		var refErr *ReferenceUnavailableError
		require.ErrorAs(t, err, &refErr)
	})

	t.Run("guarded ternary yields fallback", func(t *testing.T) {
		scope := testScope()
		scope.Nodes = excluded
		scope.Params["env"] = cty.StringVal("Development")
		got, err := Evaluate(parseExpr(t, `param.env == "Production" ? resource.audit.endpoint : ""`), scope)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal(""), got)
	})

	t.Run("guard selecting unavailable branch fails", func(t *testing.T) {
		// Condition says true while the producer is excluded: the value is
		// genuinely unavailable, so the guard does not absolve it.
		scope := testScope()
		scope.Nodes = excluded
		_, err := Evaluate(parseExpr(t, `param.env == "Production" ? resource.audit.endpoint : ""`), scope)
		var refErr *ReferenceUnavailableError
		require.ErrorAs(t, err, &refErr)
	})

	t.Run("guard may test the producer condition through a variable", func(t *testing.T) {
		scope := testScope()
		scope.Nodes = fakeNodes{
			auditAddr: {
				Value:         cty.ObjectVal(map[string]cty.Value{"endpoint": cty.StringVal("x")}),
				Excluded:      true,
				ConditionRefs: []string{"var.deploy_audit"},
			},
		}
		scope.Variables["deploy_audit"] = cty.False
		got, err := Evaluate(parseExpr(t, `var.deploy_audit ? resource.audit.endpoint : "none"`), scope)
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("none"), got)
	})
}

func TestReferences(t *testing.T) {
	e := parseExpr(t, `param.env == "Production" ? resource.audit.endpoint : var.prefix`)
	refs := References(e)

	var got []string
	for _, r := range refs {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{"param.env", "resource.audit.endpoint", "var.prefix"}, got)
}

func TestRootRefs(t *testing.T) {
	e := parseExpr(t, `param.env == "Production" && param.env != var.prefix`)
	assert.Equal(t, []string{"param.env", "var.prefix"}, RootRefs(e))
	assert.Empty(t, RootRefs(nil))
}

func TestNameSuggestion(t *testing.T) {
	assert.Equal(t, "env", NameSuggestion("enw", []string{"env", "region"}))
	assert.Equal(t, "", NameSuggestion("zzzzzz", []string{"env", "region"}))
}
