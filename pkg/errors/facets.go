package errors

// Facet is a reusable marker or data trait attached to a structured error.
// Marker facets drive recovery decisions; data facets declare which props an
// error carries for display.
type Facet string

const (
	// NotFound marks recoverable lookup misses. Callers may retry against
	// alternative routes.
	NotFound Facet = "not_found"
	// BadInput marks user-surfaceable input errors that terminate the
	// calling operation.
	BadInput Facet = "bad_input"
	// NotImplemented marks capabilities that are declared but not built.
	NotImplemented Facet = "not_implemented"
	// NotSupported marks capabilities a component refuses to provide.
	NotSupported Facet = "not_supported"
	// InvariantViolated marks programmer bugs. These must never be silently
	// caught.
	InvariantViolated Facet = "invariant_violated"

	// HasEntityRef declares the "ref" prop carries a ref key.
	HasEntityRef Facet = "has_entity_ref"
	// HasEntityType declares the "entityType" prop.
	HasEntityType Facet = "has_entity_type"
	// HasEntityField declares the "field" prop.
	HasEntityField Facet = "has_entity_field"
	// HasLoaderName declares the "loader" prop.
	HasLoaderName Facet = "has_loader_name"
	// HasConnector declares the "connector" prop.
	HasConnector Facet = "has_connector"
)
