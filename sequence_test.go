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
	"testing"
)

func mustGrid(t *testing.T, x []float64) *Grid {
	t.Helper()
	g, err := NewGrid("PGA", x)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNewGridRejectsNonIncreasing(t *testing.T) {
	if _, err := NewGrid("PGA", []float64{1, 2, 2}); err == nil {
		t.Error("expected error for non-increasing grid")
	}
	if _, err := NewGrid("PGA", nil); err == nil {
		t.Error("expected error for empty grid")
	}
}

func TestSequenceAddRejectsDifferentGrids(t *testing.T) {
	a := NewSequence(mustGrid(t, []float64{0, 1, 2}))
	b := NewSequence(mustGrid(t, []float64{0, 1, 2}))
	if _, err := a.Add(b); err == nil {
		t.Error("expected ShapeMismatch adding sequences over distinct *Grid values")
	}
}

func TestSequenceAddSameGrid(t *testing.T) {
	g := mustGrid(t, []float64{0, 1, 2})
	a, _ := NewSequenceFrom(g, []float64{1, 2, 3})
	b, _ := NewSequenceFrom(g, []float64{10, 20, 30})
	if _, err := a.Add(b); err != nil {
		t.Fatal(err)
	}
	want := []float64{11, 22, 33}
	for i, w := range want {
		if a.At(i) != w {
			t.Errorf("a.At(%d) = %v, want %v", i, a.At(i), w)
		}
	}
}

func TestSequenceMultiply(t *testing.T) {
	g := mustGrid(t, []float64{0, 1})
	s, _ := NewSequenceFrom(g, []float64{2, 4})
	s.Multiply(3)
	if s.At(0) != 6 || s.At(1) != 12 {
		t.Errorf("Multiply result = %v, want [6 12]", s.Y())
	}
}

func TestSequenceCopyIsIndependent(t *testing.T) {
	g := mustGrid(t, []float64{0, 1})
	s, _ := NewSequenceFrom(g, []float64{1, 2})
	c := s.Copy()
	c.Set(0, 99)
	if s.At(0) == 99 {
		t.Error("Copy shares backing storage with the original")
	}
}

func TestSequenceHasNonFinite(t *testing.T) {
	g := mustGrid(t, []float64{0, 1})
	s, _ := NewSequenceFrom(g, []float64{1, math.NaN()})
	if !s.HasNonFinite() {
		t.Error("expected HasNonFinite to detect NaN")
	}
	s2, _ := NewSequenceFrom(g, []float64{1, 2})
	if s2.HasNonFinite() {
		t.Error("HasNonFinite false positive")
	}
}

func TestSequenceInterpolateAt(t *testing.T) {
	g := mustGrid(t, []float64{0, 1, 2})
	s, _ := NewSequenceFrom(g, []float64{0, 10, 20})
	cases := []struct {
		x, want float64
	}{
		{-1, 0},   // clamped below
		{0, 0},    // exact
		{0.5, 5},  // midpoint
		{1, 10},   // exact
		{1.5, 15}, // midpoint
		{2, 20},   // exact
		{3, 20},   // clamped above
	}
	for _, c := range cases {
		if got := s.InterpolateAt(c.x); !approxEqualSeq(got, c.want, 1e-9) {
			t.Errorf("InterpolateAt(%v) = %v, want %v", c.x, got, c.want)
		}
	}
}

func TestImmutableSequenceDefensiveCopy(t *testing.T) {
	g := mustGrid(t, []float64{0, 1})
	s, _ := NewSequenceFrom(g, []float64{1, 2})
	v := s.Immutable()
	y := v.Y()
	y[0] = 999
	if v.At(0) == 999 {
		t.Error("ImmutableSequence.Y leaked backing storage")
	}
}

func approxEqualSeq(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
