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

// Package deagg implements the deaggregation kernel (spec.md §4.6,
// component F): rebinning hazard-curve rate contributions into a sparse
// 3-D (distance, magnitude, epsilon) volume per GMM, including the
// cluster-source rescale procedure, and consolidating across source
// sets.
package deagg

import (
	"fmt"
	"math"
)

// BinModel is the immutable discretization of (r, m, epsilon) used to
// rebin rate contributions. Indices are computed by the floor rule;
// values outside [min, max] produce the residual index -1.
type BinModel struct {
	RMin, RMax, RWidth float64
	MMin, MMax, MWidth float64
	EMin, EMax, EWidth float64
}

// NewBinModel validates and constructs a BinModel.
func NewBinModel(rMin, rMax, rWidth, mMin, mMax, mWidth, eMin, eMax, eWidth float64) (*BinModel, error) {
	b := &BinModel{
		RMin: rMin, RMax: rMax, RWidth: rWidth,
		MMin: mMin, MMax: mMax, MWidth: mWidth,
		EMin: eMin, EMax: eMax, EWidth: eWidth,
	}
	if err := b.validateAxis("r", rMin, rMax, rWidth); err != nil {
		return nil, err
	}
	if err := b.validateAxis("m", mMin, mMax, mWidth); err != nil {
		return nil, err
	}
	if err := b.validateAxis("eps", eMin, eMax, eWidth); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BinModel) validateAxis(name string, min, max, width float64) error {
	if width <= 0 {
		return fmt.Errorf("deagg: bin model %s-axis: width must be positive, got %v", name, width)
	}
	if max <= min {
		return fmt.Errorf("deagg: bin model %s-axis: max (%v) must exceed min (%v)", name, max, min)
	}
	return nil
}

// NR returns the number of distance bins.
func (b *BinModel) NR() int { return numBins(b.RMin, b.RMax, b.RWidth) }

// NM returns the number of magnitude bins.
func (b *BinModel) NM() int { return numBins(b.MMin, b.MMax, b.MWidth) }

// NE returns the number of epsilon bins.
func (b *BinModel) NE() int { return numBins(b.EMin, b.EMax, b.EWidth) }

func numBins(min, max, width float64) int {
	n := int(math.Ceil((max - min) / width))
	if n < 1 {
		n = 1
	}
	return n
}

// Index returns the (ir, im, ie) bin holding (r, m, eps). Any coordinate
// outside its axis's [min, max] range yields -1 for that coordinate,
// signaling the caller to add the contribution to the residual instead.
// A value exactly at an interior bin edge falls into the next (higher)
// bin, per the floor rule; a value exactly at the axis max is retained
// in the last bin rather than treated as residual.
func (b *BinModel) Index(r, m, eps float64) (ir, im, ie int) {
	return binIndex(r, b.RMin, b.RMax, b.RWidth, b.NR()),
		binIndex(m, b.MMin, b.MMax, b.MWidth, b.NM()),
		binIndex(eps, b.EMin, b.EMax, b.EWidth, b.NE())
}

func binIndex(v, min, max, width float64, n int) int {
	if v < min || v > max {
		return -1
	}
	idx := int(math.Floor((v - min) / width))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
