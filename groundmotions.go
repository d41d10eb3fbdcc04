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

// GroundMotions holds dense (mu, sigma) arrays for one InputList, one
// entry per (imt, gmm) pair in the parent source set's IMT and GMM sets.
type GroundMotions struct {
	Inputs *InputList
	imts   []string
	gmms   []string
	mu     map[string]map[string][]float64
	sigma  map[string]map[string][]float64
}

// Imts returns the IMTs present in this table.
func (g *GroundMotions) Imts() []string { return g.imts }

// Gmms returns the GMMs present in this table.
func (g *GroundMotions) Gmms() []string { return g.gmms }

// Mu returns the mean array for (imt, gmm), one value per input.
func (g *GroundMotions) Mu(imt, gmm string) []float64 { return g.mu[imt][gmm] }

// Sigma returns the standard-deviation array for (imt, gmm), one value
// per input.
func (g *GroundMotions) Sigma(imt, gmm string) []float64 { return g.sigma[imt][gmm] }

// GroundMotionsBuilder builds a GroundMotions table incrementally. Every
// (imt, gmm, i) triple must be set exactly once before Build is called.
type GroundMotionsBuilder struct {
	inputs *InputList
	imts   []string
	gmms   []string
	mu     map[string]map[string][]float64
	sigma  map[string]map[string][]float64
	set    map[string]map[string][]bool
	count  int
	built  bool
}

// NewGroundMotionsBuilder creates a builder for the given input list,
// IMT set, and GMM set.
func NewGroundMotionsBuilder(inputs *InputList, imts, gmms []string) *GroundMotionsBuilder {
	b := &GroundMotionsBuilder{
		inputs: inputs,
		imts:   append([]string{}, imts...),
		gmms:   append([]string{}, gmms...),
		mu:     map[string]map[string][]float64{},
		sigma:  map[string]map[string][]float64{},
		set:    map[string]map[string][]bool{},
	}
	n := inputs.Len()
	for _, imt := range b.imts {
		b.mu[imt] = map[string][]float64{}
		b.sigma[imt] = map[string][]float64{}
		b.set[imt] = map[string][]bool{}
		for _, gmm := range b.gmms {
			b.mu[imt][gmm] = make([]float64, n)
			b.sigma[imt][gmm] = make([]float64, n)
			b.set[imt][gmm] = make([]bool, n)
		}
	}
	return b
}

// Add records the (mu, sigma) pair computed for input i under the given
// (imt, gmm). Each (imt, gmm, i) triple may be set at most once.
func (b *GroundMotionsBuilder) Add(imt, gmm string, mu, sigma float64, i int) error {
	if b.built {
		return newErr(BuilderMisuse, "ground motions builder already built")
	}
	imtMu, ok := b.mu[imt]
	if !ok {
		return newErr(BuilderMisuse, "unknown imt %q", imt)
	}
	if _, ok := imtMu[gmm]; !ok {
		return newErr(BuilderMisuse, "unknown gmm %q for imt %q", gmm, imt)
	}
	if i < 0 || i >= b.inputs.Len() {
		return newErr(BuilderMisuse, "input index %d out of range [0,%d)", i, b.inputs.Len())
	}
	if b.set[imt][gmm][i] {
		return newErr(BuilderMisuse, "(imt=%s, gmm=%s, i=%d) set more than once", imt, gmm, i)
	}
	b.mu[imt][gmm][i] = mu
	b.sigma[imt][gmm][i] = sigma
	b.set[imt][gmm][i] = true
	b.count++
	return nil
}

// Build finalizes the table, asserting that every (imt, gmm, i) triple
// was set exactly once.
func (b *GroundMotionsBuilder) Build() (*GroundMotions, error) {
	if b.built {
		return nil, newErr(BuilderMisuse, "ground motions builder already built")
	}
	want := len(b.imts) * len(b.gmms) * b.inputs.Len()
	if b.count != want {
		return nil, newErr(BuilderMisuse, "ground motions builder incomplete: got %d of %d required entries", b.count, want)
	}
	b.built = true
	return &GroundMotions{
		Inputs: b.inputs,
		imts:   b.imts,
		gmms:   b.gmms,
		mu:     b.mu,
		sigma:  b.sigma,
	}, nil
}

// CombineGroundMotions splices contiguous per-partition ground-motion
// tables back together over the given master input list, which must
// have the same total length as the sum of the partitions' input lists
// and must appear in the same order they were partitioned from.
func CombineGroundMotions(master *InputList, parts []*GroundMotions) (*GroundMotions, error) {
	if len(parts) == 0 {
		return nil, newErr(BuilderMisuse, "combine: no partitions given")
	}
	imts := parts[0].imts
	gmms := parts[0].gmms
	n := master.Len()
	total := 0
	for _, p := range parts {
		total += p.Inputs.Len()
	}
	if total != n {
		return nil, newErr(ShapeMismatch, "combine: partitions sum to %d inputs, master has %d", total, n)
	}
	mu := map[string]map[string][]float64{}
	sigma := map[string]map[string][]float64{}
	for _, imt := range imts {
		mu[imt] = map[string][]float64{}
		sigma[imt] = map[string][]float64{}
		for _, gmm := range gmms {
			mu[imt][gmm] = make([]float64, 0, n)
			sigma[imt][gmm] = make([]float64, 0, n)
		}
	}
	for _, p := range parts {
		for _, imt := range imts {
			for _, gmm := range gmms {
				pm, ok := p.mu[imt][gmm]
				if !ok {
					return nil, newErr(ShapeMismatch, "combine: partition missing (imt=%s, gmm=%s)", imt, gmm)
				}
				mu[imt][gmm] = append(mu[imt][gmm], pm...)
				sigma[imt][gmm] = append(sigma[imt][gmm], p.sigma[imt][gmm]...)
			}
		}
	}
	return &GroundMotions{
		Inputs: master,
		imts:   imts,
		gmms:   gmms,
		mu:     mu,
		sigma:  sigma,
	}, nil
}
