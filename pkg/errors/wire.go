package errors

// Wire is the flat serialized form of a structured error. It crosses
// transport boundaries unchanged.
type Wire struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Props   map[string]any `json:"props,omitempty"`
	Facets  []string       `json:"facets,omitempty"`
}

// Internal covers failures that were never given a structured definition.
var Internal = Define("platform.internal", "{cause}", InvariantViolated)

// Serialize flattens err for the wire. Non-structured errors are carried
// under platform.internal so the receiving side still gets an envelope.
func Serialize(err error) *Wire {
	if err == nil {
		return nil
	}
	e, ok := AsStructured(err)
	if !ok {
		e = Internal.New(Props{"cause": err.Error()})
	}
	return &Wire{
		Code:    e.Code,
		Message: e.Message,
		Props:   e.Props,
		Facets:  FacetStrings(e.Facets),
	}
}

// Reconstitute reassembles a structured error from its wire form. Code,
// message, props, and facets survive the round trip.
func Reconstitute(w *Wire) *E {
	if w == nil {
		return nil
	}
	facets := make([]Facet, 0, len(w.Facets))
	for _, f := range w.Facets {
		facets = append(facets, Facet(f))
	}
	var props Props
	if len(w.Props) > 0 {
		props = Props(w.Props)
	}
	return &E{
		Code:    w.Code,
		Message: w.Message,
		Props:   props,
		Facets:  facets,
	}
}
