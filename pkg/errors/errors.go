// Package errors implements the structured error envelope used across every
// Max boundary.
//
// Each boundary (core, connector, execution, storage, federation, rpc,
// platform, query) owns a code namespace and declares its error definitions
// with Define. A definition carries a message template, and the facet list
// that callers test with Has. Errors serialize to a flat wire object and
// reconstitute on the receiving side with code, message, props, and facets
// preserved.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Props is the typed key-value bag attached to an error.
type Props map[string]any

// Definition declares one error code within a boundary namespace.
type Definition struct {
	Code     string
	Template string
	Facets   []Facet
}

// Define declares an error definition. Code must be namespaced
// ("boundary.snake_case").
func Define(code, template string, facets ...Facet) Definition {
	return Definition{Code: code, Template: template, Facets: facets}
}

// New instantiates the definition with the given props. The message is
// rendered from the template by substituting "{prop}" placeholders.
func (d Definition) New(props Props) *E {
	return &E{
		Code:    d.Code,
		Message: render(d.Template, props),
		Props:   props,
		Facets:  append([]Facet(nil), d.Facets...),
	}
}

// Wrap instantiates the definition with props and an underlying cause. The
// cause participates in errors.Is/As chains and is carried as a "cause" prop
// across the wire.
func (d Definition) Wrap(cause error, props Props) *E {
	if cause != nil {
		merged := make(Props, len(props)+1)
		for k, v := range props {
			merged[k] = v
		}
		if _, ok := merged["cause"]; !ok {
			merged["cause"] = cause.Error()
		}
		props = merged
	}
	e := d.New(props)
	e.cause = cause
	return e
}

// Is reports whether err carries this definition's code.
func (d Definition) Is(err error) bool {
	return CodeOf(err) == d.Code
}

// E is the structured error value.
type E struct {
	Code    string
	Message string
	Props   Props
	Facets  []Facet

	cause error
}

// Error implements the error interface.
func (e *E) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause, if any.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Has reports whether the error carries the facet.
func (e *E) Has(f Facet) bool {
	if e == nil {
		return false
	}
	for _, have := range e.Facets {
		if have == f {
			return true
		}
	}
	return false
}

// Prop returns a prop value by key.
func (e *E) Prop(key string) (any, bool) {
	if e == nil || e.Props == nil {
		return nil, false
	}
	v, ok := e.Props[key]
	return v, ok
}

// Has reports whether err, or any error in its unwrap chain, is a structured
// error carrying the facet.
func Has(err error, f Facet) bool {
	for err != nil {
		if e, ok := err.(*E); ok && e.Has(f) {
			return true
		}
		err = unwrapOne(err)
	}
	return false
}

// CodeOf returns the code of the nearest structured error in the chain, or
// "" when none is present.
func CodeOf(err error) string {
	for err != nil {
		if e, ok := err.(*E); ok {
			return e.Code
		}
		err = unwrapOne(err)
	}
	return ""
}

// AsStructured returns the nearest structured error in the chain.
func AsStructured(err error) (*E, bool) {
	for err != nil {
		if e, ok := err.(*E); ok {
			return e, true
		}
		err = unwrapOne(err)
	}
	return nil, false
}

func unwrapOne(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func render(template string, props Props) string {
	if template == "" {
		return ""
	}
	out := template
	for key, value := range props {
		out = strings.ReplaceAll(out, "{"+key+"}", fmt.Sprintf("%v", value))
	}
	return out
}

// FacetStrings returns facet names sorted for stable encoding.
func FacetStrings(facets []Facet) []string {
	out := make([]string, 0, len(facets))
	for _, f := range facets {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}
