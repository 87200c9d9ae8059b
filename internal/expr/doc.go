// Package expr evaluates template expressions against a read-only scope.
//
// The evaluator walks the hclsyntax AST directly instead of calling
// hcl.Expression.Value. The template language's contract is that every
// sub-expression of a node is evaluated eagerly, including both branches
// of a ternary; hcl's native evaluation short-circuits ternaries, which
// would silently hide the unguarded-reference hazard this engine exists
// to surface. Parsing, diagnostics, source ranges, and the value system
// remain hcl and cty throughout.
package expr
