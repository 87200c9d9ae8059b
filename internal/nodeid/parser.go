package nodeid

import (
	"fmt"
	"regexp"
	"strings"
)

// labelRegex validates a single label or property-path segment.
var labelRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// kinds is the set of recognized address namespaces.
var kinds = map[string]Kind{
	"param":    KindParam,
	"var":      KindVariable,
	"resource": KindResource,
	"module":   KindModule,
}

// Parse creates an Address by parsing its canonical string representation,
// e.g. "resource.audit".
func Parse(raw string) (Address, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return Address{}, err
	}
	if len(ref.Path) != 0 {
		return Address{}, fmt.Errorf("address %q must not carry a property path", raw)
	}
	return ref.Target, nil
}

// ParseRef parses a full reference string, e.g. "resource.audit.endpoint",
// into an address plus a property path.
func ParseRef(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, fmt.Errorf("identifier cannot be empty")
	}

	segments := strings.Split(raw, ".")
	if len(segments) < 2 {
		return Ref{}, fmt.Errorf("identifier %q must have the form <kind>.<label>", raw)
	}

	kind, ok := kinds[segments[0]]
	if !ok {
		return Ref{}, fmt.Errorf("unknown identifier namespace %q in %q", segments[0], raw)
	}

	for _, segment := range segments[1:] {
		if !labelRegex.MatchString(segment) {
			return Ref{}, fmt.Errorf("invalid identifier segment %q in %q", segment, raw)
		}
	}

	return Ref{
		Target: Address{Kind: kind, Label: segments[1]},
		Path:   segments[2:],
	}, nil
}
