package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stencilgo/internal/planner"
)

// FindOperation returns the plan operation for the given node address
// string, failing the test when it is absent.
func FindOperation(t *testing.T, result *HarnessResult, node string) planner.Operation {
	t.Helper()
	require.NotNil(t, result.Plan, "expected a finalized plan, got error: %v", result.Err)
	for _, op := range result.Plan.Operations {
		if op.Node.String() == node {
			return op
		}
	}
	require.Failf(t, "operation not found", "no plan operation for node %q", node)
	return planner.Operation{}
}

// AssertCreated checks that the plan includes the node as a create
// operation under the expected deployment name.
func AssertCreated(t *testing.T, result *HarnessResult, node, name string) {
	t.Helper()
	op := FindOperation(t, result, node)
	require.Equal(t, planner.OpCreate, op.Kind, "node %q should be planned for creation", node)
	require.Equal(t, name, op.Name, "node %q resolved to an unexpected deployment name", node)
}

// AssertSkipped checks that the plan records the node as excluded.
func AssertSkipped(t *testing.T, result *HarnessResult, node string) {
	t.Helper()
	op := FindOperation(t, result, node)
	require.Equal(t, planner.OpSkip, op.Kind, "node %q should be excluded from deployment", node)
}
