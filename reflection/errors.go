package reflection

import "errors"

var (
	// ErrNotConformant is returned when a concrete type does not implement
	// the interface of the existential it is bound to.
	ErrNotConformant = errors.New("reflection: type does not conform to interface")

	// ErrArgCount is returned when the number of specialization arguments
	// does not match the program's parameters.
	ErrArgCount = errors.New("reflection: specialization argument count mismatch")

	// ErrDynamicArg is returned when a Dynamic argument reaches the compiler.
	ErrDynamicArg = errors.New("reflection: dynamic specialization argument")

	// ErrNestedExistential is returned for concrete types that themselves
	// contain existential fields.
	ErrNestedExistential = errors.New("reflection: nested existential in concrete type")

	// ErrExistentialBindings is returned when a concrete type with resources
	// is bound to an existential inside a constant buffer, where its pending
	// bindings would overlap the parent's, or when a concrete type declares
	// parameter blocks.
	ErrExistentialBindings = errors.New("reflection: existential with resources inside constant buffer")

	// ErrSparseGroups is returned for WGSL modules whose bind groups or
	// bindings are not dense from zero.
	ErrSparseGroups = errors.New("reflection: bind groups and bindings must be dense")

	// ErrUnsupportedWGSL is returned for WGSL globals with no binding model
	// equivalent.
	ErrUnsupportedWGSL = errors.New("reflection: unsupported WGSL resource")
)
