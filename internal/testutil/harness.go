package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stencilgo/internal/app"
	"github.com/vk/stencilgo/internal/planner"
	"github.com/vk/stencilgo/internal/provider"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// AppliedResource records a single handler invocation made during an
// applied test run.
type AppliedResource struct {
	Name       string
	Properties cty.Value
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Plan      *planner.Plan
	Applied   []AppliedResource
}

// Options tunes a harness run. The zero value plans without applying and
// passes no parameter overrides.
type Options struct {
	Params map[string]string
	Apply  bool
}

// RunPlanTest provides a standardized harness for running integration
// tests using a default background context.
func RunPlanTest(t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()
	return RunPlanTestWithContext(context.Background(), t, files, opts)
}

// RunPlanTestWithContext writes the given template files to a temporary
// directory, runs the full planning pipeline over them, and optionally
// applies the resulting plan against recording handlers.
func RunPlanTestWithContext(ctx context.Context, t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	appConfig, err := app.NewConfig(app.Config{
		TemplatePath: tmpDir,
		Params:       opts.Params,
		LogLevel:     "debug",
		LogFormat:    "text",
	})
	require.NoError(t, err)

	result := &HarnessResult{}

	// A recording fallback captures every create regardless of type.
	registry := provider.NewRegistry()
	var mu sync.Mutex
	result.trackApplies(registry, &mu)

	logBuffer := &SafeBuffer{}
	testApp := app.NewApp(logBuffer, appConfig, registry)

	plan, runErr := testApp.Plan(ctx)
	result.Plan = plan
	result.Err = runErr

	if runErr == nil && opts.Apply {
		result.Err = registry.Apply(ctx, plan)
	}

	result.LogOutput = logBuffer.String()
	if os.Getenv("STENCILGO_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}

func (r *HarnessResult) trackApplies(registry *provider.Registry, mu *sync.Mutex) {
	registry.SetFallback(&provider.Handler{
		Apply: func(ctx context.Context, name string, properties cty.Value) error {
			mu.Lock()
			defer mu.Unlock()
			r.Applied = append(r.Applied, AppliedResource{
				Name:       name,
				Properties: properties,
			})
			return nil
		},
	})
}
