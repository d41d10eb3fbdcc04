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

	"github.com/ctessum/psha/exceedance"
)

// referenceWindowYears is the exposure window used to reinterpret a
// cluster variant's rate curve as a Poisson probability of exceedance
// (spec.md §4.5). Annual rates, so a one-year window.
const referenceWindowYears = 1.0

// HazardCurves holds, for one GroundMotions table, the per-IMT,
// per-GMM intensity sequence already scaled by the source's rate but
// not yet by GMM or source-set weight.
type HazardCurves struct {
	curve map[string]map[string]*Sequence
}

// Curve returns the sequence for (imt, gmm), or nil if absent.
func (h *HazardCurves) Curve(imt, gmm string) *Sequence {
	m, ok := h.curve[imt]
	if !ok {
		return nil
	}
	return m[gmm]
}

// Imts returns the IMTs present.
func (h *HazardCurves) Imts() []string {
	out := make([]string, 0, len(h.curve))
	for imt := range h.curve {
		out = append(out, imt)
	}
	return out
}

// HazardCurvesBuilder accumulates exceedance-weighted rate contributions
// from one or more GroundMotions tables into per-(imt,gmm) curves.
type HazardCurvesBuilder struct {
	grids map[string]*Grid
	model exceedance.Model
	curve map[string]map[string]*Sequence
	built bool
}

// NewHazardCurvesBuilder creates a builder that integrates exceedance
// probabilities against model over the given per-IMT x-grids.
func NewHazardCurvesBuilder(grids map[string]*Grid, model exceedance.Model) *HazardCurvesBuilder {
	return &HazardCurvesBuilder{
		grids: grids,
		model: model,
		curve: map[string]map[string]*Sequence{},
	}
}

// Accumulate folds one GroundMotions table's contribution into the
// curves under construction: for each input i and each x-level,
// P(exceed x) * input.Rate is added to curve[imt][gmm].
func (b *HazardCurvesBuilder) Accumulate(gm *GroundMotions) error {
	if b.built {
		return newErr(BuilderMisuse, "hazard curves builder already built")
	}
	for _, imt := range gm.Imts() {
		grid, ok := b.grids[imt]
		if !ok {
			return newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
		}
		if _, ok := b.curve[imt]; !ok {
			b.curve[imt] = map[string]*Sequence{}
		}
		for _, gmm := range gm.Gmms() {
			seq, ok := b.curve[imt][gmm]
			if !ok {
				seq = NewSequence(grid)
				b.curve[imt][gmm] = seq
			}
			mu := gm.Mu(imt, gmm)
			sigma := gm.Sigma(imt, gmm)
			inputs := gm.Inputs
			for i := 0; i < inputs.Len(); i++ {
				rate := inputs.At(i).Rate
				if rate == 0 {
					continue
				}
				for xi, x := range grid.X {
					p, err := b.model.Exceedance(mu[i], sigma[i], x, imt)
					if err != nil {
						return withCause(External, err, "exceedance model failed for imt %s, gmm %s, input %d", imt, gmm, i)
					}
					seq.Set(xi, seq.At(xi)+p*rate)
				}
			}
		}
	}
	return nil
}

// Build finalizes the curves, surfacing NumericFault if any NaN or Inf
// was produced.
func (b *HazardCurvesBuilder) Build() (*HazardCurves, error) {
	if b.built {
		return nil, newErr(BuilderMisuse, "hazard curves builder already built")
	}
	for imt, gmmMap := range b.curve {
		for gmm, seq := range gmmMap {
			if seq.HasNonFinite() {
				return nil, newErr(NumericFault, "non-finite value in curve (imt=%s, gmm=%s)", imt, gmm)
			}
		}
	}
	b.built = true
	return &HazardCurves{curve: b.curve}, nil
}

// ClusterGroundMotions is the ordered list of per-variant GroundMotions
// making up one cluster source, tagged with the cluster's name.
type ClusterGroundMotions struct {
	ClusterName string
	Variants    []*GroundMotions
}

// MinDistance returns the minimum RJB across all variants.
func (c *ClusterGroundMotions) MinDistance() float64 {
	min := math.Inf(1)
	for _, v := range c.Variants {
		if d := v.Inputs.MinDistance(); d < min {
			min = d
		}
	}
	return min
}

// ClusterCurves is the combined per-(imt,gmm) curve for one cluster,
// computed via the probabilistic-OR formula (spec.md §4.5), plus the
// retained per-variant curves. The per-variant ground motions are kept
// separately, in ClusterGroundMotions.
type ClusterCurves struct {
	ClusterName   string
	curve         map[string]map[string]*Sequence
	VariantCurves []*HazardCurves
}

// Curve returns the combined cluster curve for (imt, gmm).
func (c *ClusterCurves) Curve(imt, gmm string) *Sequence {
	m, ok := c.curve[imt]
	if !ok {
		return nil
	}
	return m[gmm]
}

// BuildClusterCurves computes a cluster's combined curve from its
// variants' individual HazardCurves:
//
//	clusterCurve[imt][gmm](x) = clusterRate * (1 - Π_variants (1 - variantPoE[imt][gmm](x)))
//
// where variantPoE reinterprets the variant's rate curve as a Poisson
// probability of exceedance over a one-year reference window.
func BuildClusterCurves(clusterName string, clusterRate float64, variantCurves []*HazardCurves, grids map[string]*Grid) (*ClusterCurves, error) {
	if len(variantCurves) == 0 {
		return nil, newErr(BuilderMisuse, "cluster %q: no variants", clusterName)
	}
	imtGmm := map[string]map[string]bool{}
	for _, vc := range variantCurves {
		for imt, gmmMap := range vc.curve {
			if _, ok := imtGmm[imt]; !ok {
				imtGmm[imt] = map[string]bool{}
			}
			for gmm := range gmmMap {
				imtGmm[imt][gmm] = true
			}
		}
	}
	curve := map[string]map[string]*Sequence{}
	for imt, gmmSet := range imtGmm {
		grid, ok := grids[imt]
		if !ok {
			return nil, newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
		}
		curve[imt] = map[string]*Sequence{}
		for gmm := range gmmSet {
			seq := NewSequence(grid)
			for xi := range grid.X {
				notExceed := 1.0
				for _, vc := range variantCurves {
					vseq := vc.Curve(imt, gmm)
					var lambda float64
					if vseq != nil {
						lambda = vseq.At(xi)
					}
					poe := 1 - math.Exp(-lambda*referenceWindowYears)
					notExceed *= 1 - poe
				}
				seq.Set(xi, clusterRate*(1-notExceed))
			}
			if seq.HasNonFinite() {
				return nil, newErr(NumericFault, "cluster %q: non-finite value in curve (imt=%s, gmm=%s)", clusterName, imt, gmm)
			}
			curve[imt][gmm] = seq
		}
	}
	return &ClusterCurves{ClusterName: clusterName, curve: curve, VariantCurves: variantCurves}, nil
}

// HazardCurveSet holds all curves derived from one source set: the
// weight applied, the retained per-source or per-cluster ground
// motions (kept for deaggregation), the curve combined across sources
// and weighted by GMM, and the total curve combined across GMMs and
// scaled by the source-set weight.
type HazardCurveSet struct {
	SourceSetName string
	SourceSetType SourceType
	Weight        float64

	PerSourceGM  []*GroundMotions
	PerClusterGM []*ClusterGroundMotions

	// PerClusterCurves and ClusterWeights are retained, parallel to
	// PerClusterGM, so the deaggregator can recover each cluster's own
	// (unweighted) curve and logic-tree weight (spec.md §4.6, cluster
	// deaggregation). Both are nil for non-cluster source sets.
	PerClusterCurves []*ClusterCurves
	ClusterWeights   []float64

	Curve      map[string]map[string]*Sequence
	TotalCurve map[string]*Sequence
}

// ConsolidatePlain combines per-source HazardCurves (spec.md §4.5,
// "Curve Consolidator") for a Fault/Grid/Interface/Slab/System source
// set into a HazardCurveSet.
func ConsolidatePlain(name string, sourceType SourceType, sourceSetWeight float64, gmms GmmSet, perSource []*HazardCurves, minDistances []float64, retained []*GroundMotions, grids map[string]*Grid) (*HazardCurveSet, error) {
	if len(perSource) != len(minDistances) {
		return nil, newErr(BuilderMisuse, "consolidate %q: %d curves but %d distances", name, len(perSource), len(minDistances))
	}
	combined := map[string]map[string]*Sequence{}
	for idx, hc := range perSource {
		wmap, err := gmms.WeightMap(minDistances[idx])
		if err != nil {
			return nil, withCause(External, err, "gmm weight map failed for source set %q", name)
		}
		for imt, gmmMap := range hc.curve {
			for gmm, seq := range gmmMap {
				w, ok := wmap[gmm]
				if !ok {
					// GMM not applicable at this source's distance: a
					// deliberate policy, not a bug.
					continue
				}
				grid, ok := grids[imt]
				if !ok {
					return nil, newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
				}
				if _, ok := combined[imt]; !ok {
					combined[imt] = map[string]*Sequence{}
				}
				acc, ok := combined[imt][gmm]
				if !ok {
					acc = NewSequence(grid)
					combined[imt][gmm] = acc
				}
				if _, err := acc.Add(seq.Copy().Multiply(w)); err != nil {
					return nil, err
				}
			}
		}
	}
	totalCurve, err := sumAcrossGmm(combined, sourceSetWeight, grids)
	if err != nil {
		return nil, err
	}
	return &HazardCurveSet{
		SourceSetName: name,
		SourceSetType: sourceType,
		Weight:        sourceSetWeight,
		PerSourceGM:   retained,
		Curve:         combined,
		TotalCurve:    totalCurve,
	}, nil
}

// ConsolidateClusters combines per-cluster ClusterCurves into a
// HazardCurveSet, applying each cluster's own weight before GMM
// weighting (spec.md §4.5).
func ConsolidateClusters(name string, sourceSetWeight float64, gmms GmmSet, clusters []*ClusterCurves, clusterWeights, minDistances []float64, retained []*ClusterGroundMotions, grids map[string]*Grid) (*HazardCurveSet, error) {
	if len(clusters) != len(minDistances) || len(clusters) != len(clusterWeights) {
		return nil, newErr(BuilderMisuse, "consolidate %q: mismatched cluster slice lengths", name)
	}
	combined := map[string]map[string]*Sequence{}
	for idx, cc := range clusters {
		wmap, err := gmms.WeightMap(minDistances[idx])
		if err != nil {
			return nil, withCause(External, err, "gmm weight map failed for source set %q", name)
		}
		for imt, gmmMap := range cc.curve {
			for gmm, seq := range gmmMap {
				gw, ok := wmap[gmm]
				if !ok {
					continue
				}
				grid, ok := grids[imt]
				if !ok {
					return nil, newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
				}
				if _, ok := combined[imt]; !ok {
					combined[imt] = map[string]*Sequence{}
				}
				acc, ok := combined[imt][gmm]
				if !ok {
					acc = NewSequence(grid)
					combined[imt][gmm] = acc
				}
				scaled := seq.Copy().Multiply(clusterWeights[idx]).Multiply(gw)
				if _, err := acc.Add(scaled); err != nil {
					return nil, err
				}
			}
		}
	}
	totalCurve, err := sumAcrossGmm(combined, sourceSetWeight, grids)
	if err != nil {
		return nil, err
	}
	return &HazardCurveSet{
		SourceSetName:    name,
		SourceSetType:    Cluster,
		Weight:           sourceSetWeight,
		PerClusterGM:     retained,
		PerClusterCurves: clusters,
		ClusterWeights:   append([]float64{}, clusterWeights...),
		Curve:            combined,
		TotalCurve:       totalCurve,
	}, nil
}

func sumAcrossGmm(combined map[string]map[string]*Sequence, sourceSetWeight float64, grids map[string]*Grid) (map[string]*Sequence, error) {
	total := map[string]*Sequence{}
	for imt, grid := range grids {
		total[imt] = NewSequence(grid)
	}
	for imt, gmmMap := range combined {
		t, ok := total[imt]
		if !ok {
			return nil, newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
		}
		for _, seq := range gmmMap {
			if _, err := t.Add(seq); err != nil {
				return nil, err
			}
		}
	}
	for imt, seq := range total {
		seq.Multiply(sourceSetWeight)
		if seq.HasNonFinite() {
			return nil, newErr(NumericFault, "non-finite total curve (imt=%s)", imt)
		}
	}
	return total, nil
}

// Hazard is the immutable result of a hazard calculation for one site:
// the mean total curve across all source sets, plus the curve sets
// themselves, grouped by source type.
type Hazard struct {
	Site         Site
	totalCurve   map[string]*Sequence
	bySourceType map[SourceType][]*HazardCurveSet
	curveSets    []*HazardCurveSet
}

// TotalCurve returns the mean curve for imt as an immutable view.
func (h *Hazard) TotalCurve(imt string) (ImmutableSequence, bool) {
	seq, ok := h.totalCurve[imt]
	if !ok {
		return ImmutableSequence{}, false
	}
	return seq.Immutable(), true
}

// Imts returns the IMTs present in the total curve.
func (h *Hazard) Imts() []string {
	out := make([]string, 0, len(h.totalCurve))
	for imt := range h.totalCurve {
		out = append(out, imt)
	}
	return out
}

// CurveSetsByType returns the curve sets of the given source type, in
// submission (model) order.
func (h *Hazard) CurveSetsByType(t SourceType) []*HazardCurveSet { return h.bySourceType[t] }

// CurveSets returns all curve sets, in submission order.
func (h *Hazard) CurveSets() []*HazardCurveSet { return h.curveSets }

// ConsolidateHazard sums TotalCurve across curve sets (in submission
// order, for reproducible rounding) and buckets the curve sets by
// source type.
func ConsolidateHazard(site Site, grids map[string]*Grid, curveSets []*HazardCurveSet) (*Hazard, error) {
	total := map[string]*Sequence{}
	for imt, grid := range grids {
		total[imt] = NewSequence(grid)
	}
	for _, cs := range curveSets {
		for imt, seq := range cs.TotalCurve {
			t, ok := total[imt]
			if !ok {
				return nil, newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
			}
			if _, err := t.Add(seq); err != nil {
				return nil, err
			}
		}
	}
	for imt, seq := range total {
		if seq.HasNonFinite() {
			return nil, newErr(NumericFault, "non-finite total curve (imt=%s)", imt)
		}
	}
	bySourceType := map[SourceType][]*HazardCurveSet{}
	for _, cs := range curveSets {
		bySourceType[cs.SourceSetType] = append(bySourceType[cs.SourceSetType], cs)
	}
	return &Hazard{
		Site:         site,
		totalCurve:   total,
		bySourceType: bySourceType,
		curveSets:    curveSets,
	}, nil
}
