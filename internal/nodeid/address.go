package nodeid

import "strings"

// String serializes the Address into its canonical dotted representation.
func (a Address) String() string {
	if a.Kind == "" && a.Label == "" {
		return ""
	}
	return string(a.Kind) + "." + a.Label
}

// String serializes the Ref, including its property path.
func (r Ref) String() string {
	if len(r.Path) == 0 {
		return r.Target.String()
	}
	return r.Target.String() + "." + strings.Join(r.Path, ".")
}
