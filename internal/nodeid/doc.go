// Package nodeid defines the canonical addressing scheme for entities
// declared in a template: parameters, variables, resources, and modules.
//
// An address is a namespace kind plus a label ("resource.audit"); a ref
// additionally carries the property path a consumer reads
// ("resource.audit.endpoint"). Addresses are plain values so that every
// other package can use them as map keys without caring how references
// are spelled in source files.
package nodeid
