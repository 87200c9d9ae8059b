package nodeid

// Kind identifies the namespace a template address belongs to.
type Kind string

const (
	// KindParam addresses an immutable template parameter, e.g. `param.env`.
	KindParam Kind = "param"
	// KindVariable addresses a derived variable, e.g. `var.prefix`.
	KindVariable Kind = "var"
	// KindResource addresses a deployable resource node, e.g. `resource.audit`.
	KindResource Kind = "resource"
	// KindModule addresses a group node, e.g. `module.monitoring`.
	KindModule Kind = "module"
)

// Address is the structured representation of a unique identifier within a
// template: a namespace kind plus a label.
type Address struct {
	Kind  Kind
	Label string
}

// NewResource returns the address of a resource node.
func NewResource(label string) Address {
	return Address{Kind: KindResource, Label: label}
}

// NewModule returns the address of a module group node.
func NewModule(label string) Address {
	return Address{Kind: KindModule, Label: label}
}

// IsNode reports whether the address names a graph node (resource or module)
// rather than an environment entry.
func (a Address) IsNode() bool {
	return a.Kind == KindResource || a.Kind == KindModule
}

// Ref is a reference to an address plus an optional property path into the
// values it publishes, e.g. `resource.audit.endpoint`.
type Ref struct {
	Target Address
	Path   []string
}
