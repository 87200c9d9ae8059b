package expr

import (
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// DefaultFunctions returns the baseline external-function table. Function
// calls are an injected capability: callers may extend or replace this map
// to expose provider-specific helpers (secret retrieval, key lookup) to
// template expressions.
func DefaultFunctions() map[string]function.Function {
	return map[string]function.Function{
		"coalesce": stdlib.CoalesceFunc,
		"concat":   stdlib.ConcatFunc,
		"contains": stdlib.ContainsFunc,
		"format":   stdlib.FormatFunc,
		"join":     stdlib.JoinFunc,
		"length":   stdlib.LengthFunc,
		"lower":    stdlib.LowerFunc,
		"max":      stdlib.MaxFunc,
		"min":      stdlib.MinFunc,
		"substr":   stdlib.SubstrFunc,
		"upper":    stdlib.UpperFunc,
	}
}
