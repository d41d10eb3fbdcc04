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

package deagg

import (
	"math"
	"sort"

	"github.com/ctessum/psha"
)

// SourceContribution is one source's (or cluster's) tally within a
// Dataset. For a source, Rate is the rate it contributed to the
// dataset's bins and SkipRate the rate that fell in the residual bin; a
// GMM that does not apply at the source's distance records no
// contribution at all. For a cluster, Rate is the cluster's rescaled,
// fully weighted rate at the target level and SkipRate is zero.
type SourceContribution struct {
	SourceName string
	Rate       float64
	SkipRate   float64
}

// Dataset is the immutable result of deaggregating one (source set,
// GMM, IMT, iml) combination: a sparse rate volume over (r, m, epsilon)
// plus weighted-mean and per-bin display accumulators and per-source
// contributions (spec.md §3, "Deagg Dataset").
type Dataset struct {
	bins *BinModel

	rmeps [][][]float64

	rBar, mBar, epsBar, barWeight float64
	residual                      float64

	rPositions      [][]float64
	mPositions      [][]float64
	positionWeights [][]float64

	contributions []SourceContribution
}

// Bins returns the bin model this dataset was built over.
func (d *Dataset) Bins() *BinModel { return d.bins }

// Rate returns the accumulated rate in bin (ir, im, ie).
func (d *Dataset) Rate(ir, im, ie int) float64 { return d.rmeps[ir][im][ie] }

// Residual returns the total rate that fell outside the bin model's
// range on at least one axis.
func (d *Dataset) Residual() float64 { return d.residual }

// BarWeight returns the total accumulated rate (the weighted-mean
// denominator).
func (d *Dataset) BarWeight() float64 { return d.barWeight }

// RBar returns the rate-weighted mean distance, or NaN if BarWeight is
// zero.
func (d *Dataset) RBar() float64 { return ratio(d.rBar, d.barWeight) }

// MBar returns the rate-weighted mean magnitude, or NaN if BarWeight is
// zero.
func (d *Dataset) MBar() float64 { return ratio(d.mBar, d.barWeight) }

// EpsBar returns the rate-weighted mean epsilon, or NaN if BarWeight is
// zero.
func (d *Dataset) EpsBar() float64 { return ratio(d.epsBar, d.barWeight) }

// RHat returns the per-bin display distance for (ir, im): the
// rate-weighted mean distance of contributions landing in that (r, m)
// column, or NaN if no rate landed there. A NaN here is expected
// behavior, not a NumericFault.
func (d *Dataset) RHat(ir, im int) float64 { return ratio(d.rPositions[ir][im], d.positionWeights[ir][im]) }

// MHat returns the per-bin display magnitude for (ir, im).
func (d *Dataset) MHat(ir, im int) float64 { return ratio(d.mPositions[ir][im], d.positionWeights[ir][im]) }

// Contributions returns the per-source contributions in accumulation
// order.
func (d *Dataset) Contributions() []SourceContribution { return d.contributions }

// TopContributors returns up to n contributions ranked by Rate,
// descending.
func (d *Dataset) TopContributors(n int) []SourceContribution {
	out := append([]SourceContribution{}, d.contributions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Scale returns a new Dataset with every bin, accumulator, and
// contribution rate multiplied by factor. Used to rescale a cluster's
// naive per-variant accumulation onto its true (PoE-combined) curve
// rate (spec.md §4.6).
func (d *Dataset) Scale(factor float64) *Dataset {
	out := newDataset(d.bins)
	for ir := range d.rmeps {
		for im := range d.rmeps[ir] {
			for ie := range d.rmeps[ir][im] {
				out.rmeps[ir][im][ie] = d.rmeps[ir][im][ie] * factor
			}
			out.rPositions[ir][im] = d.rPositions[ir][im] * factor
			out.mPositions[ir][im] = d.mPositions[ir][im] * factor
			out.positionWeights[ir][im] = d.positionWeights[ir][im] * factor
		}
	}
	out.rBar = d.rBar * factor
	out.mBar = d.mBar * factor
	out.epsBar = d.epsBar * factor
	out.barWeight = d.barWeight * factor
	out.residual = d.residual * factor
	out.contributions = make([]SourceContribution, len(d.contributions))
	for i, c := range d.contributions {
		out.contributions[i] = SourceContribution{SourceName: c.SourceName, Rate: c.Rate * factor, SkipRate: c.SkipRate * factor}
	}
	return out
}

// Combine sums datasets bin-by-bin and accumulator-by-accumulator. All
// datasets must share the same bin model dimensions.
func Combine(datasets []*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, psha.NewError(psha.BuilderMisuse, "deagg: combine called with no datasets")
	}
	bins := datasets[0].bins
	out := newDataset(bins)
	for _, d := range datasets {
		if d.bins.NR() != bins.NR() || d.bins.NM() != bins.NM() || d.bins.NE() != bins.NE() {
			return nil, psha.NewError(psha.ShapeMismatch, "deagg: combine: bin model dimensions differ")
		}
		for ir := range d.rmeps {
			for im := range d.rmeps[ir] {
				for ie := range d.rmeps[ir][im] {
					out.rmeps[ir][im][ie] += d.rmeps[ir][im][ie]
				}
				out.rPositions[ir][im] += d.rPositions[ir][im]
				out.mPositions[ir][im] += d.mPositions[ir][im]
				out.positionWeights[ir][im] += d.positionWeights[ir][im]
			}
		}
		out.rBar += d.rBar
		out.mBar += d.mBar
		out.epsBar += d.epsBar
		out.barWeight += d.barWeight
		out.residual += d.residual
		out.contributions = append(out.contributions, d.contributions...)
	}
	return out, nil
}

func newDataset(bins *BinModel) *Dataset {
	nr, nm, ne := bins.NR(), bins.NM(), bins.NE()
	rmeps := make([][][]float64, nr)
	rPositions := make([][]float64, nr)
	mPositions := make([][]float64, nr)
	positionWeights := make([][]float64, nr)
	for ir := 0; ir < nr; ir++ {
		rmeps[ir] = make([][]float64, nm)
		for im := 0; im < nm; im++ {
			rmeps[ir][im] = make([]float64, ne)
		}
		rPositions[ir] = make([]float64, nm)
		mPositions[ir] = make([]float64, nm)
		positionWeights[ir] = make([]float64, nm)
	}
	return &Dataset{
		bins:            bins,
		rmeps:           rmeps,
		rPositions:      rPositions,
		mPositions:      mPositions,
		positionWeights: positionWeights,
	}
}

// DatasetBuilder accumulates rate contributions into a Dataset under
// construction.
type DatasetBuilder struct {
	ds    *Dataset
	built bool
}

// NewDatasetBuilder creates a builder over the given bin model.
func NewDatasetBuilder(bins *BinModel) *DatasetBuilder {
	return &DatasetBuilder{ds: newDataset(bins)}
}

// Accumulate adds one contribution of rate at (r, m, eps), per spec.md
// §4.6 step 3: in-range coordinates fall into their bin and update the
// weighted-mean and per-bin display accumulators; out-of-range
// coordinates on any axis add rate to the residual instead.
func (b *DatasetBuilder) Accumulate(r, m, eps, rate float64) error {
	if b.built {
		return psha.NewError(psha.BuilderMisuse, "deagg: dataset builder already built")
	}
	ir, im, ie := b.ds.bins.Index(r, m, eps)
	if ir < 0 || im < 0 || ie < 0 {
		b.ds.residual += rate
		return nil
	}
	b.ds.rmeps[ir][im][ie] += rate
	b.ds.rBar += r * rate
	b.ds.mBar += m * rate
	b.ds.epsBar += eps * rate
	b.ds.barWeight += rate
	b.ds.rPositions[ir][im] += r * rate
	b.ds.mPositions[ir][im] += m * rate
	b.ds.positionWeights[ir][im] += rate
	return nil
}

// AddContribution records a source's (or cluster's) tally.
func (b *DatasetBuilder) AddContribution(sourceName string, rate, skipRate float64) error {
	if b.built {
		return psha.NewError(psha.BuilderMisuse, "deagg: dataset builder already built")
	}
	b.ds.contributions = append(b.ds.contributions, SourceContribution{SourceName: sourceName, Rate: rate, SkipRate: skipRate})
	return nil
}

// Build finalizes the dataset, surfacing NumericFault if any
// accumulator is NaN or Inf. A bin or bar ratio of 0/0 (reported as NaN
// by RHat/MHat/RBar/MBar/EpsBar) is not itself a fault; only the raw
// accumulators are checked here.
func (b *DatasetBuilder) Build() (*Dataset, error) {
	if b.built {
		return nil, psha.NewError(psha.BuilderMisuse, "deagg: dataset builder already built")
	}
	if nonFinite(b.ds.rBar) || nonFinite(b.ds.mBar) || nonFinite(b.ds.epsBar) || nonFinite(b.ds.barWeight) || nonFinite(b.ds.residual) {
		return nil, psha.NewError(psha.NumericFault, "deagg: non-finite accumulator")
	}
	for _, plane := range b.ds.rmeps {
		for _, row := range plane {
			for _, v := range row {
				if nonFinite(v) {
					return nil, psha.NewError(psha.NumericFault, "deagg: non-finite bin value")
				}
			}
		}
	}
	b.built = true
	return b.ds, nil
}

func nonFinite(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
