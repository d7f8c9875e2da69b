package main

import (
	"fmt"

	"github.com/maxdata-sh/max/internal/config"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
	ansiReset  = "\x1b[0m"
)

func colorize(color, s string) string {
	if !config.ColorEnabled() {
		return s
	}
	return color + s + ansiReset
}

// renderError formats an error for stderr: the message, plus facet-specific
// hints when the error is structured.
func renderError(err error) string {
	e, ok := maxerrors.AsStructured(err)
	if !ok {
		return colorize(ansiRed, "error: ") + err.Error()
	}

	out := colorize(ansiRed, "error: ") + e.Message
	switch {
	case e.Has(maxerrors.InvariantViolated):
		out = colorize(ansiRed, "this is a bug in max\n") + out
	case e.Has(maxerrors.NotFound):
		out += colorize(ansiDim, " (not found)")
	case e.Has(maxerrors.BadInput):
		out += colorize(ansiDim, " (invalid input)")
	case e.Has(maxerrors.NotSupported), e.Has(maxerrors.NotImplemented):
		out += colorize(ansiDim, " (not supported)")
	}
	if e.Has(maxerrors.HasEntityRef) {
		if v, ok := e.Prop("ref"); ok {
			out += fmt.Sprintf("\n  ref: %v", v)
		}
	}
	if e.Has(maxerrors.HasLoaderName) {
		if v, ok := e.Prop("loader"); ok {
			out += fmt.Sprintf("\n  loader: %v", v)
		}
	}
	if e.Has(maxerrors.HasConnector) {
		if v, ok := e.Prop("connector"); ok {
			out += fmt.Sprintf("\n  connector: %v", v)
		}
	}
	out += colorize(ansiDim, fmt.Sprintf("\n  code: %s", e.Code))
	return out
}
