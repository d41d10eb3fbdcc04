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

import "math"

// HazardInput is the set of ground-motion predictor parameters
// contributed by a single rupture, plus the annual rate of occurrence
// of that rupture.
type HazardInput struct {
	Rate float64 // annual occurrence rate

	Mw   float64
	RJB  float64
	RRup float64
	RX   float64

	Dip   float64
	Width float64
	ZTop  float64
	ZHyp  float64
	Rake  float64

	Vs30       float64
	VsInferred bool
	Z1p0       float64
	Z2p5       float64
}

// Provenance distinguishes source-backed input lists (one per Source,
// carrying the source's name) from system-backed ones (one per
// SourceSet, used when the set is represented as a single flat rupture
// list).
type Provenance int

const (
	// SourceBacked input lists carry the name of their parent Source.
	SourceBacked Provenance = iota
	// SystemBacked input lists carry the name of their parent SourceSet.
	SystemBacked
)

// InputList is an append-only ordered sequence of HazardInputs. It
// caches the minimum RJB seen so far and tracks the name of its parent
// (a Source or a SourceSet, per Provenance).
type InputList struct {
	inputs      []HazardInput
	minDistance float64
	parentName  string
	provenance  Provenance
	partitioned bool
}

// NewInputList creates an empty InputList with the given parent name and
// provenance.
func NewInputList(parentName string, provenance Provenance) *InputList {
	return &InputList{
		parentName:  parentName,
		provenance:  provenance,
		minDistance: math.Inf(1),
	}
}

// ParentName returns the name of the parent Source (source-backed) or
// SourceSet (system-backed).
func (l *InputList) ParentName() string { return l.parentName }

// Provenance reports whether this list is source-backed or system-backed.
func (l *InputList) Provenance() Provenance { return l.provenance }

// Add appends input to the list and updates MinDistance. It fails with
// BuilderMisuse if called on a partition.
func (l *InputList) Add(input HazardInput) error {
	if l.partitioned {
		return newErr(BuilderMisuse, "cannot add to a partitioned input list (parent %q)", l.parentName)
	}
	l.inputs = append(l.inputs, input)
	if input.RJB < l.minDistance {
		l.minDistance = input.RJB
	}
	return nil
}

// Len returns the number of inputs in the list.
func (l *InputList) Len() int { return len(l.inputs) }

// MinDistance returns the minimum RJB seen across all appended inputs.
// It is +Inf for an empty list.
func (l *InputList) MinDistance() float64 { return l.minDistance }

// At returns the input at index i.
func (l *InputList) At(i int) HazardInput { return l.inputs[i] }

// All returns the underlying inputs. Callers must not mutate the
// returned slice.
func (l *InputList) All() []HazardInput { return l.inputs }

// Partition splits the list into contiguous sub-lists of at most
// chunkSize inputs each (the last may be shorter). Partitions are
// independent copies sharing no mutable state with the original or with
// each other, carry the same ParentName, and reject further Add calls.
func (l *InputList) Partition(chunkSize int) []*InputList {
	if chunkSize <= 0 {
		chunkSize = len(l.inputs)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}
	var parts []*InputList
	for start := 0; start < len(l.inputs); start += chunkSize {
		end := start + chunkSize
		if end > len(l.inputs) {
			end = len(l.inputs)
		}
		p := &InputList{
			parentName:  l.parentName,
			provenance:  l.provenance,
			partitioned: true,
			minDistance: math.Inf(1),
		}
		p.inputs = make([]HazardInput, end-start)
		copy(p.inputs, l.inputs[start:end])
		for _, in := range p.inputs {
			if in.RJB < p.minDistance {
				p.minDistance = in.RJB
			}
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		// Preserve the empty-list case as a single empty partition so
		// downstream combine logic always has at least one part to
		// reassemble.
		parts = append(parts, &InputList{
			parentName:  l.parentName,
			provenance:  l.provenance,
			partitioned: true,
			minDistance: math.Inf(1),
		})
	}
	return parts
}
