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

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Grid is the shared, immutable x-axis for one intensity measure type.
// Values are log-spaced intensity levels (natural log units). All
// Sequences for the same IMT share the same *Grid by identity; that
// identity, not the values, is what Sequence operations check.
type Grid struct {
	IMT string
	X   []float64
}

// NewGrid builds a Grid, validating that x is strictly increasing.
func NewGrid(imt string, x []float64) (*Grid, error) {
	if len(x) == 0 {
		return nil, newErr(ConfigInvalid, "imt %s: empty x-grid", imt)
	}
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			return nil, newErr(ConfigInvalid, "imt %s: x-grid not strictly increasing at index %d", imt, i)
		}
	}
	xc := make([]float64, len(x))
	copy(xc, x)
	return &Grid{IMT: imt, X: xc}, nil
}

// Sequence is an ordered (x, y) series sharing a Grid's x-values by
// reference. All arithmetic operates on the y-values only.
type Sequence struct {
	Grid *Grid
	y    []float64
}

// NewSequence creates a zero-valued Sequence over grid.
func NewSequence(grid *Grid) *Sequence {
	return &Sequence{Grid: grid, y: make([]float64, len(grid.X))}
}

// NewSequenceFrom creates a Sequence over grid with the given y-values.
// y is copied; its length must match grid.
func NewSequenceFrom(grid *Grid, y []float64) (*Sequence, error) {
	if len(y) != len(grid.X) {
		return nil, newErr(ShapeMismatch, "imt %s: y has length %d, grid has length %d", grid.IMT, len(y), len(grid.X))
	}
	s := NewSequence(grid)
	copy(s.y, y)
	return s, nil
}

// Len returns the number of points in the sequence.
func (s *Sequence) Len() int { return len(s.y) }

// Y returns a defensive copy of the y-values.
func (s *Sequence) Y() []float64 {
	out := make([]float64, len(s.y))
	copy(out, s.y)
	return out
}

// At returns the y-value at index i.
func (s *Sequence) At(i int) float64 { return s.y[i] }

// Set assigns the y-value at index i.
func (s *Sequence) Set(i int, v float64) { s.y[i] = v }

func (s *Sequence) sameGrid(other *Sequence) error {
	if s.Grid != other.Grid {
		return newErr(ShapeMismatch, "sequences do not share an x-grid (imt %s vs %s)", s.Grid.IMT, other.Grid.IMT)
	}
	return nil
}

// Add adds other's y-values into s in place and returns s. Both
// sequences must share the same *Grid by identity.
func (s *Sequence) Add(other *Sequence) (*Sequence, error) {
	if err := s.sameGrid(other); err != nil {
		return nil, err
	}
	floats.Add(s.y, other.y)
	return s, nil
}

// Multiply scales every y-value by scalar in place and returns s.
func (s *Sequence) Multiply(scalar float64) *Sequence {
	floats.Scale(scalar, s.y)
	return s
}

// Copy returns an independent Sequence with the same grid and values.
func (s *Sequence) Copy() *Sequence {
	c := NewSequence(s.Grid)
	copy(c.y, s.y)
	return c
}

// EmptyCopy returns a zero-valued Sequence sharing s's grid.
func (s *Sequence) EmptyCopy() *Sequence {
	return NewSequence(s.Grid)
}

// Clear zeroes every y-value in place.
func (s *Sequence) Clear() {
	for i := range s.y {
		s.y[i] = 0
	}
}

// HasNonFinite reports whether any y-value is NaN or Inf.
func (s *Sequence) HasNonFinite() bool {
	for _, v := range s.y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// InterpolateAt returns the linear interpolation of y at x = target,
// clamped to the sequence's endpoints outside the grid's range. The
// grid's x-values are already log-spaced intensity levels, so this is
// "log-linear in x, linear in y" with respect to the underlying
// intensity scale.
func (s *Sequence) InterpolateAt(target float64) float64 {
	x := s.Grid.X
	n := len(x)
	if target <= x[0] {
		return s.y[0]
	}
	if target >= x[n-1] {
		return s.y[n-1]
	}
	i := sort.SearchFloat64s(x, target)
	if i < n && x[i] == target {
		return s.y[i]
	}
	// i is the index of the first element > target, so the bracket is
	// [i-1, i].
	lo, hi := i-1, i
	frac := (target - x[lo]) / (x[hi] - x[lo])
	return s.y[lo] + frac*(s.y[hi]-s.y[lo])
}

// ImmutableSequence is a read-only view of a Sequence, handed out in
// published results. It exposes no mutators; Y returns a defensive copy
// on every call so callers cannot observe or corrupt internal state.
type ImmutableSequence struct {
	seq *Sequence
}

// Immutable wraps s in a read-only view.
func (s *Sequence) Immutable() ImmutableSequence {
	return ImmutableSequence{seq: s}
}

// Grid returns the shared x-grid.
func (v ImmutableSequence) Grid() *Grid { return v.seq.Grid }

// Y returns a defensive copy of the y-values.
func (v ImmutableSequence) Y() []float64 { return v.seq.Y() }

// At returns the y-value at index i.
func (v ImmutableSequence) At(i int) float64 { return v.seq.At(i) }

// Len returns the number of points.
func (v ImmutableSequence) Len() int { return v.seq.Len() }

// InterpolateAt returns the linearly interpolated y-value at x = target.
func (v ImmutableSequence) InterpolateAt(target float64) float64 { return v.seq.InterpolateAt(target) }
