package expr

import (
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/vk/stencilgo/internal/nodeid"
)

// TraversalKey generates a stable, canonical string representation for an
// hcl.Traversal, suitable for use as a map key.
func TraversalKey(t hcl.Traversal) string {
	// e.g., param.env or resource.audit.endpoint
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// References extracts every template reference appearing in the given
// expressions. The result is deduplicated and sorted for deterministic
// graph construction. Traversals that do not belong to a template
// namespace are skipped; evaluation reports them properly later.
func References(exprs ...hcl.Expression) []nodeid.Ref {
	seen := map[string]nodeid.Ref{}

	for _, e := range exprs {
		if e == nil {
			continue
		}
		for _, traversal := range e.Variables() {
			ref, ok := refFromTraversal(traversal)
			if !ok {
				continue
			}
			seen[ref.String()] = ref
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refs := make([]nodeid.Ref, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, seen[k])
	}
	return refs
}

// RootRefs returns the canonical addresses ("param.env", "resource.audit")
// referenced by an expression, deduplicated and sorted. Guard matching
// compares these against a producer's condition references.
func RootRefs(e hcl.Expression) []string {
	if e == nil {
		return nil
	}

	seen := map[string]struct{}{}
	for _, traversal := range e.Variables() {
		ref, ok := refFromTraversal(traversal)
		if !ok {
			continue
		}
		seen[ref.Target.String()] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// refFromTraversal converts an absolute traversal into a template reference.
func refFromTraversal(traversal hcl.Traversal) (nodeid.Ref, bool) {
	if len(traversal) < 2 {
		return nodeid.Ref{}, false
	}

	var kind nodeid.Kind
	switch traversal.RootName() {
	case "param":
		kind = nodeid.KindParam
	case "var":
		kind = nodeid.KindVariable
	case "resource":
		kind = nodeid.KindResource
	case "module":
		kind = nodeid.KindModule
	default:
		return nodeid.Ref{}, false
	}

	attr, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return nodeid.Ref{}, false
	}

	ref := nodeid.Ref{Target: nodeid.Address{Kind: kind, Label: attr.Name}}
	for _, step := range traversal[2:] {
		attrStep, ok := step.(hcl.TraverseAttr)
		if !ok {
			// Index steps end the statically-known property path.
			break
		}
		ref.Path = append(ref.Path, attrStep.Name)
	}
	return ref, true
}

// SourceText returns the canonical source snippet of an expression, with
// whitespace collapsed. Used to compare conditions syntactically.
func SourceText(e hcl.Expression, sources map[string][]byte) string {
	if e == nil {
		return ""
	}
	rng := e.Range()
	src, ok := sources[rng.Filename]
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(string(rng.SliceBytes(src))), " ")
}
