/*
Copyright © 2026 the psha authors.
This file is part of psha, a probabilistic seismic hazard analysis engine.

psha is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

psha is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with psha.  If not, see <http://www.gnu.org/licenses/>.
*/

package psha

import "fmt"

// Kind identifies the category of a hazard engine failure.
type Kind int

const (
	// ConfigInvalid indicates missing or out-of-range configuration,
	// discovered at engine construction or at the Engine.Hazard boundary.
	ConfigInvalid Kind = iota
	// ShapeMismatch indicates intensity sequences or ground-motion arrays
	// of inconsistent shape were combined.
	ShapeMismatch
	// BuilderMisuse indicates Build was called twice, with missing
	// required inputs, or a frozen/partitioned value was mutated.
	BuilderMisuse
	// NumericFault indicates a NaN or Inf appeared in a computed mu,
	// sigma, curve value, or deaggregation accumulator.
	NumericFault
	// Cancelled indicates cooperative cancellation between pipeline
	// stages.
	Cancelled
	// External indicates a failure surfaced from a collaborator: source
	// enumeration, rupture-to-input conversion, or GMM evaluation.
	External
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case ShapeMismatch:
		return "ShapeMismatch"
	case BuilderMisuse:
		return "BuilderMisuse"
	case NumericFault:
		return "NumericFault"
	case Cancelled:
		return "Cancelled"
	case External:
		return "External"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by the operations of this package and
// of psha/deagg's datasets and deaggregation functions (the exceedance
// models and deagg.NewBinModel return plain errors). It carries a Kind (§7) plus the site/source-set/source context
// where known, and an optional wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	SourceSet  string
	SourceName string
	Site       string
	Cause      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("psha: %s: %s", e.Kind, e.Message)
	if e.SourceSet != "" {
		s += fmt.Sprintf(" (source set %q", e.SourceSet)
		if e.SourceName != "" {
			s += fmt.Sprintf(", source %q", e.SourceName)
		}
		s += ")"
	}
	if e.Site != "" {
		s += fmt.Sprintf(" [site %s]", e.Site)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// newErr constructs an *Error with the given kind and formatted message.
func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// withCause constructs an *Error with the given kind, formatted message,
// and wrapped cause.
func withCause(kind Kind, cause error, format string, args ...interface{}) *Error {
	e := newErr(kind, format, args...)
	e.Cause = cause
	return e
}

// NewError constructs an *Error with the given kind and formatted
// message. It is the exported form of newErr, for use by sibling
// packages (e.g. psha/deagg) that surface the same error kinds.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return newErr(kind, format, args...)
}

// WithCause is the exported form of withCause.
func WithCause(kind Kind, cause error, format string, args ...interface{}) *Error {
	return withCause(kind, cause, format, args...)
}
