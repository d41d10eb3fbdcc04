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
	"github.com/ctessum/psha"
	"github.com/ctessum/psha/exceedance"
)

// Config carries the target of deaggregation: the IMT and intensity
// level to deaggregate at, the exceedance model (matching the one used
// to build the curves being deaggregated), the GMM set belonging to the
// source set under deaggregation (needed to recompute gmmWeight(d), the
// same collaborator the engine used to build the curve set), the bin
// model, and a contributor display limit.
type Config struct {
	IMT   string
	IML   float64
	Model exceedance.Model
	Gmms  psha.GmmSet
	Bins  *BinModel

	// TopN is the contributor display limit carried with the
	// configuration; topN reports it, or 10 when it is zero. Deaggregate
	// does not read it and keeps every contribution; Dataset.TopContributors
	// takes its own bound.
	TopN int
}

func (c *Config) topN() int {
	if c.TopN > 0 {
		return c.TopN
	}
	return 10
}

// Validate checks the configuration is complete, returning ConfigInvalid
// on failure.
func (c *Config) Validate() error {
	if c.IMT == "" {
		return psha.NewError(psha.ConfigInvalid, "deagg: no imt configured")
	}
	if c.Model == nil {
		return psha.NewError(psha.ConfigInvalid, "deagg: no exceedance model configured")
	}
	if c.Gmms == nil {
		return psha.NewError(psha.ConfigInvalid, "deagg: no gmm set configured")
	}
	if c.Bins == nil {
		return psha.NewError(psha.ConfigInvalid, "deagg: no bin model configured")
	}
	return nil
}

// Deaggregate rebins one HazardCurveSet's rate contributions into a
// per-GMM Dataset at cfg.IML (spec.md §4.6). Plain (FAULT/GRID/
// INTERFACE/SLAB) and SYSTEM source sets (both retained as PerSourceGM)
// share the direct accumulation path; CLUSTER source sets use the
// rescale-by-interpolated-rate procedure.
func Deaggregate(cs *psha.HazardCurveSet, cfg *Config) (map[string]*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cs.SourceSetType == psha.Cluster {
		return deaggregateClusters(cs, cfg)
	}
	return deaggregatePlain(cs, cfg)
}

func deaggregatePlain(cs *psha.HazardCurveSet, cfg *Config) (map[string]*Dataset, error) {
	gmmNames := cfg.Gmms.Gmms()
	builders := make(map[string]*DatasetBuilder, len(gmmNames))
	for _, name := range gmmNames {
		builders[name] = NewDatasetBuilder(cfg.Bins)
	}
	for _, gm := range cs.PerSourceGM {
		inputs := gm.Inputs
		d := inputs.MinDistance()
		wmap, err := cfg.Gmms.WeightMap(d)
		if err != nil {
			return nil, psha.WithCause(psha.External, err, "deagg: gmm weight map failed for source %q", inputs.ParentName())
		}
		for _, gmmName := range gmmNames {
			w, ok := wmap[gmmName]
			if !ok {
				continue
			}
			b := builders[gmmName]
			mu := gm.Mu(cfg.IMT, gmmName)
			sigma := gm.Sigma(cfg.IMT, gmmName)
			var contributed, skipped float64
			for i := 0; i < inputs.Len(); i++ {
				in := inputs.At(i)
				p, err := cfg.Model.Exceedance(mu[i], sigma[i], cfg.IML, cfg.IMT)
				if err != nil {
					return nil, psha.WithCause(psha.External, err, "deagg: exceedance model failed")
				}
				rate := p * in.Rate * cs.Weight * w
				eps := (mu[i] - cfg.IML) / sigma[i]
				if err := b.Accumulate(in.RRup, in.Mw, eps, rate); err != nil {
					return nil, err
				}
				if ir, im, ie := cfg.Bins.Index(in.RRup, in.Mw, eps); ir < 0 || im < 0 || ie < 0 {
					skipped += rate
				} else {
					contributed += rate
				}
			}
			if err := b.AddContribution(inputs.ParentName(), contributed, skipped); err != nil {
				return nil, err
			}
		}
	}
	return buildAll(builders)
}

// deaggregateClusters implements the rescale-by-interpolated-rate
// procedure (spec.md §4.6, "Cluster sets"). Per cluster and per GMM, it
// accumulates a naive linear builder from the cluster's variants (which
// does not match the true, PoE-combined cluster curve), then rescales
// every bin and accumulator so the builder's total rate matches the
// cluster's actual rate at iml, interpolated off the retained
// ClusterCurves. The per-GMM, per-cluster datasets are then combined
// into one dataset per GMM.
func deaggregateClusters(cs *psha.HazardCurveSet, cfg *Config) (map[string]*Dataset, error) {
	gmmNames := cfg.Gmms.Gmms()
	perGmm := make(map[string][]*Dataset, len(gmmNames))
	for _, name := range gmmNames {
		perGmm[name] = nil
	}
	for ci, cc := range cs.PerClusterCurves {
		cgm := cs.PerClusterGM[ci]
		weight := cs.ClusterWeights[ci]
		d := cgm.MinDistance()
		wmap, err := cfg.Gmms.WeightMap(d)
		if err != nil {
			return nil, psha.WithCause(psha.External, err, "deagg: gmm weight map failed for cluster %q", cc.ClusterName)
		}
		for _, gmmName := range gmmNames {
			gw, ok := wmap[gmmName]
			if !ok {
				continue
			}
			raw := NewDatasetBuilder(cfg.Bins)
			var builderRate float64
			for _, variantGM := range cgm.Variants {
				inputs := variantGM.Inputs
				mu := variantGM.Mu(cfg.IMT, gmmName)
				sigma := variantGM.Sigma(cfg.IMT, gmmName)
				if mu == nil {
					continue
				}
				for i := 0; i < inputs.Len(); i++ {
					in := inputs.At(i)
					p, err := cfg.Model.Exceedance(mu[i], sigma[i], cfg.IML, cfg.IMT)
					if err != nil {
						return nil, psha.WithCause(psha.External, err, "deagg: exceedance model failed")
					}
					rate := p * in.Rate
					eps := (mu[i] - cfg.IML) / sigma[i]
					if err := raw.Accumulate(in.RRup, in.Mw, eps, rate); err != nil {
						return nil, err
					}
					builderRate += rate
				}
			}
			rawDS, err := raw.Build()
			if err != nil {
				return nil, err
			}
			var clusterRateAtIml float64
			if curve := cc.Curve(cfg.IMT, gmmName); curve != nil {
				clusterRateAtIml = curve.InterpolateAt(cfg.IML)
			}
			factor := 0.0
			if builderRate != 0 {
				factor = clusterRateAtIml / builderRate
			}
			rescaled := rawDS.Scale(factor * gw * weight * cs.Weight)
			rescaled = rescaled.withContribution(cc.ClusterName, clusterRateAtIml*gw*weight*cs.Weight)
			perGmm[gmmName] = append(perGmm[gmmName], rescaled)
		}
	}
	out := make(map[string]*Dataset, len(gmmNames))
	for _, name := range gmmNames {
		list := perGmm[name]
		if len(list) == 0 {
			empty, err := NewDatasetBuilder(cfg.Bins).Build()
			if err != nil {
				return nil, err
			}
			out[name] = empty
			continue
		}
		combined, err := Combine(list)
		if err != nil {
			return nil, err
		}
		out[name] = combined
	}
	return out, nil
}

// withContribution sets d's contribution list to a single entry, used
// after Scale to report the cluster's final, fully-weighted rate (the
// raw per-variant builder records no contributions of its own).
func (d *Dataset) withContribution(name string, rate float64) *Dataset {
	d.contributions = []SourceContribution{{SourceName: name, Rate: rate}}
	return d
}

func buildAll(builders map[string]*DatasetBuilder) (map[string]*Dataset, error) {
	out := make(map[string]*Dataset, len(builders))
	for name, b := range builders {
		ds, err := b.Build()
		if err != nil {
			return nil, err
		}
		out[name] = ds
	}
	return out, nil
}

// Aggregate combines deaggregation results from multiple source sets
// (each a {gmm -> Dataset} map, as returned by Deaggregate) into one
// {gmm -> Dataset} total (spec.md §4.6, "Across source sets").
func Aggregate(perSourceSet ...map[string]*Dataset) (map[string]*Dataset, error) {
	byGmm := map[string][]*Dataset{}
	for _, m := range perSourceSet {
		for gmm, ds := range m {
			byGmm[gmm] = append(byGmm[gmm], ds)
		}
	}
	out := make(map[string]*Dataset, len(byGmm))
	for gmm, list := range byGmm {
		combined, err := Combine(list)
		if err != nil {
			return nil, err
		}
		out[gmm] = combined
	}
	return out, nil
}

// DeaggregateHazard deaggregates every curve set in h, dispatching each
// to the Config registered for its source type in cfgByType, and
// returns both the per-source-type-per-GMM breakdown and the grand
// total across every source set and GMM.
func DeaggregateHazard(h *psha.Hazard, cfgByType map[psha.SourceType]*Config) (map[psha.SourceType]map[string]*Dataset, map[string]*Dataset, error) {
	bySourceType := map[psha.SourceType]map[string]*Dataset{}
	var all []map[string]*Dataset
	for _, cs := range h.CurveSets() {
		cfg, ok := cfgByType[cs.SourceSetType]
		if !ok {
			return nil, nil, psha.NewError(psha.ConfigInvalid, "deagg: no config registered for source type %s", cs.SourceSetType)
		}
		result, err := Deaggregate(cs, cfg)
		if err != nil {
			return nil, nil, err
		}
		if existing, ok := bySourceType[cs.SourceSetType]; ok {
			merged, err := Aggregate(existing, result)
			if err != nil {
				return nil, nil, err
			}
			bySourceType[cs.SourceSetType] = merged
		} else {
			bySourceType[cs.SourceSetType] = result
		}
		all = append(all, result)
	}
	total, err := Aggregate(all...)
	if err != nil {
		return nil, nil, err
	}
	return bySourceType, total, nil
}
