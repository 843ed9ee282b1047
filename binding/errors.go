package binding

import "errors"

// Errors returned by layout building, object writes and binding.
var (
	// ErrInvalidBindingIndex is returned by setters addressing a binding
	// range or array element the layout does not declare. The object is left
	// unchanged.
	ErrInvalidBindingIndex = errors.New("binding: invalid binding index")

	// ErrUnsupportedBindingType is returned for binding kinds the backend
	// binding model cannot represent.
	ErrUnsupportedBindingType = errors.New("binding: unsupported binding type")

	// ErrSpecializationFailure is returned when the concrete types bound to
	// existential parameters cannot be resolved. The bind is aborted.
	ErrSpecializationFailure = errors.New("binding: specialization failed")

	// ErrAllocationFailure is returned when the backend fails to create a
	// layout, bind group or buffer.
	ErrAllocationFailure = errors.New("binding: allocation failed")

	// ErrMissingSubObject is returned when a constant buffer or parameter
	// block slot is bound without an object.
	ErrMissingSubObject = errors.New("binding: sub-object not set")
)
