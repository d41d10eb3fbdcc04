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
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ctessum/psha/internal/workpool"
)

// Engine is the pipeline engine (spec.md §4.5, component E): the single
// entrypoint that, for a site, fans a model's source sets out through
// source -> inputs -> ground motions -> curves, fans them back in to a
// per-source-set HazardCurveSet, and finally consolidates all curve
// sets into a Hazard.
//
// Concurrency is bounded by one shared workpool.Pool sized from
// cfg.Threads. Source sets themselves are processed one at a time in
// submission order (so their own internal fan-out never nests a second
// acquisition against the same bounded pool, which would risk
// deadlocking once the pool is saturated by outer tasks); within each
// source set, sources, clusters, or system partitions fan out
// across the shared pool and are joined in submission order, which is
// what makes the floating-point sums deterministic regardless of
// completion order (spec.md §5).
type Engine struct {
	cfg    *Config
	pool   *workpool.Pool
	logger *logrus.Logger
}

// NewEngine validates cfg and constructs an Engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, pool: workpool.New(cfg.Threads)}, nil
}

// SetLogger attaches a logger used for per-source-set progress messages.
// A nil logger (the default) disables logging.
func (e *Engine) SetLogger(l *logrus.Logger) { e.logger = l }

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Infof(format, args...)
	}
}

// Hazard computes the hazard result for one site across every source
// set in model. It fails fast: the first stage error for the site
// aborts the whole calculation and no partial result is returned.
func (e *Engine) Hazard(ctx context.Context, model Model, site Site) (*Hazard, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}
	sourceSets, err := model.SourceSets()
	if err != nil {
		return nil, withCause(External, err, "model.SourceSets failed")
	}
	curveSets := make([]*HazardCurveSet, len(sourceSets))
	for i, ss := range sourceSets {
		select {
		case <-ctx.Done():
			return nil, withCause(Cancelled, ctx.Err(), "hazard calculation for site %s cancelled", site)
		default:
		}
		cs, err := e.processSourceSet(ctx, ss, site)
		if err != nil {
			if perr, ok := err.(*Error); ok && perr.Site == "" {
				perr.Site = site.String()
			}
			return nil, err
		}
		curveSets[i] = cs
		e.logf("site %s: processed source set %q (%s)", site, ss.Name(), ss.Type())
	}
	return ConsolidateHazard(site, e.cfg.Grids, curveSets)
}

func (e *Engine) processSourceSet(ctx context.Context, ss SourceSet, site Site) (*HazardCurveSet, error) {
	switch {
	case ss.Type().isPlain():
		return e.processPlain(ctx, ss, site)
	case ss.Type() == System:
		sys, ok := ss.(SystemSourceSet)
		if !ok {
			return nil, annotateSourceSet(newErr(ConfigInvalid, "type SYSTEM but does not implement SystemSourceSet"), ss.Name())
		}
		return e.processSystem(ctx, sys, site)
	case ss.Type() == Cluster:
		cl, ok := ss.(ClusterSourceSet)
		if !ok {
			return nil, annotateSourceSet(newErr(ConfigInvalid, "type CLUSTER but does not implement ClusterSourceSet"), ss.Name())
		}
		return e.processCluster(ctx, cl, site)
	default:
		return nil, annotateSourceSet(newErr(ConfigInvalid, "unknown source type"), ss.Name())
	}
}

func annotateSourceSet(err error, name string) error {
	if perr, ok := err.(*Error); ok {
		perr.SourceSet = name
		return perr
	}
	return err
}

func (e *Engine) imts() []string {
	out := make([]string, 0, len(e.cfg.Grids))
	for imt := range e.cfg.Grids {
		out = append(out, imt)
	}
	sort.Strings(out)
	return out
}

// buildInputs evaluates every rupture against site into a new input
// list owned by parentName.
func buildInputs(parentName string, provenance Provenance, ruptures []Rupture, site Site) (*InputList, error) {
	inputs := NewInputList(parentName, provenance)
	for _, r := range ruptures {
		in, err := r.ToInput(site)
		if err != nil {
			return nil, withCause(External, err, "rupture-to-input conversion failed for %q", parentName)
		}
		if err := inputs.Add(in); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

// buildGroundMotions evaluates every (imt, gmm) pair in gmmSet against
// every input in the list.
func buildGroundMotions(inputs *InputList, imts, gmmNames []string, gmmSet GmmSet) (*GroundMotions, error) {
	gb := NewGroundMotionsBuilder(inputs, imts, gmmNames)
	gmms := make(map[string]GroundMotionModel, len(gmmNames))
	for _, name := range gmmNames {
		g, err := gmmSet.Gmm(name)
		if err != nil {
			return nil, withCause(External, err, "unknown gmm %q", name)
		}
		gmms[name] = g
	}
	for _, imt := range imts {
		for _, gmmName := range gmmNames {
			gmm := gmms[gmmName]
			for i := 0; i < inputs.Len(); i++ {
				mu, sigma, err := gmm.Evaluate(inputs.At(i), imt)
				if err != nil {
					return nil, withCause(External, err, "gmm %q evaluation failed for imt %q", gmmName, imt)
				}
				if err := gb.Add(imt, gmmName, mu, sigma, i); err != nil {
					return nil, err
				}
			}
		}
	}
	return gb.Build()
}

func (e *Engine) buildCurves(gm *GroundMotions) (*HazardCurves, error) {
	cb := NewHazardCurvesBuilder(e.cfg.Grids, e.cfg.Exceedance)
	if err := cb.Accumulate(gm); err != nil {
		return nil, err
	}
	return cb.Build()
}

type sourceResult struct {
	hc      *HazardCurves
	gm      *GroundMotions
	minDist float64
}

func (e *Engine) processPlain(ctx context.Context, ss SourceSet, site Site) (*HazardCurveSet, error) {
	sources, err := ss.Sources()
	if err != nil {
		return nil, annotateSourceSet(withCause(External, err, "enumerate sources"), ss.Name())
	}
	gmmSet := ss.Gmms()
	gmmNames := gmmSet.Gmms()
	imts := e.imts()

	futures := make([]*workpool.Future[sourceResult], len(sources))
	for i, src := range sources {
		src := src
		futures[i] = workpool.Go(e.pool, func() (sourceResult, error) {
			select {
			case <-ctx.Done():
				return sourceResult{}, withCause(Cancelled, ctx.Err(), "source %q cancelled", src.Name())
			default:
			}
			ruptures, err := src.Ruptures()
			if err != nil {
				return sourceResult{}, withCause(External, err, "enumerate ruptures for source %q", src.Name())
			}
			inputs, err := buildInputs(src.Name(), SourceBacked, ruptures, site)
			if err != nil {
				return sourceResult{}, err
			}
			gm, err := buildGroundMotions(inputs, imts, gmmNames, gmmSet)
			if err != nil {
				return sourceResult{}, err
			}
			hc, err := e.buildCurves(gm)
			if err != nil {
				return sourceResult{}, err
			}
			return sourceResult{hc: hc, gm: gm, minDist: inputs.MinDistance()}, nil
		})
	}
	results, err := workpool.Join(futures)
	if err != nil {
		return nil, annotateSourceSet(err, ss.Name())
	}
	perSource := make([]*HazardCurves, len(results))
	minDists := make([]float64, len(results))
	retained := make([]*GroundMotions, len(results))
	for i, r := range results {
		perSource[i] = r.hc
		minDists[i] = r.minDist
		retained[i] = r.gm
	}
	return ConsolidatePlain(ss.Name(), ss.Type(), ss.Weight(), gmmSet, perSource, minDists, retained, e.cfg.Grids)
}

func (e *Engine) processSystem(ctx context.Context, sys SystemSourceSet, site Site) (*HazardCurveSet, error) {
	ruptures, err := sys.SystemRuptures()
	if err != nil {
		return nil, annotateSourceSet(withCause(External, err, "enumerate system ruptures"), sys.Name())
	}
	master, err := buildInputs(sys.Name(), SystemBacked, ruptures, site)
	if err != nil {
		return nil, annotateSourceSet(err, sys.Name())
	}
	gmmSet := sys.Gmms()
	gmmNames := gmmSet.Gmms()
	imts := e.imts()
	parts := master.Partition(e.cfg.partitionSize())

	futures := make([]*workpool.Future[sourceResult], len(parts))
	for i, part := range parts {
		part := part
		futures[i] = workpool.Go(e.pool, func() (sourceResult, error) {
			select {
			case <-ctx.Done():
				return sourceResult{}, withCause(Cancelled, ctx.Err(), "system partition cancelled")
			default:
			}
			gm, err := buildGroundMotions(part, imts, gmmNames, gmmSet)
			if err != nil {
				return sourceResult{}, err
			}
			return sourceResult{gm: gm}, nil
		})
	}
	results, err := workpool.Join(futures)
	if err != nil {
		return nil, annotateSourceSet(err, sys.Name())
	}
	gms := make([]*GroundMotions, len(results))
	for i, r := range results {
		gms[i] = r.gm
	}
	combinedGM, err := CombineGroundMotions(master, gms)
	if err != nil {
		return nil, annotateSourceSet(err, sys.Name())
	}
	// Curves are integrated once over the recombined ground motions, in
	// input order, so the result is bit-identical to an unpartitioned run.
	combinedHC, err := e.buildCurves(combinedGM)
	if err != nil {
		return nil, annotateSourceSet(err, sys.Name())
	}
	return ConsolidatePlain(sys.Name(), System, sys.Weight(), gmmSet,
		[]*HazardCurves{combinedHC}, []float64{combinedGM.Inputs.MinDistance()},
		[]*GroundMotions{combinedGM}, e.cfg.Grids)
}

// sumHazardCurves adds a system source set's per-partition curves
// elementwise: partitioning only splits which inputs contribute to the
// sum, so the combined curve is the unweighted sum of the partial ones.
func sumHazardCurves(results []sourceResult, grids map[string]*Grid) (*HazardCurves, error) {
	combined := map[string]map[string]*Sequence{}
	for _, r := range results {
		for imt, gmmMap := range r.hc.curve {
			grid, ok := grids[imt]
			if !ok {
				return nil, newErr(ConfigInvalid, "no x-grid configured for imt %q", imt)
			}
			if _, ok := combined[imt]; !ok {
				combined[imt] = map[string]*Sequence{}
			}
			for gmm, seq := range gmmMap {
				acc, ok := combined[imt][gmm]
				if !ok {
					acc = NewSequence(grid)
					combined[imt][gmm] = acc
				}
				if _, err := acc.Add(seq); err != nil {
					return nil, err
				}
			}
		}
	}
	return &HazardCurves{curve: combined}, nil
}

type clusterResult struct {
	cc      *ClusterCurves
	cgm     *ClusterGroundMotions
	minDist float64
}

func (e *Engine) processCluster(ctx context.Context, cl ClusterSourceSet, site Site) (*HazardCurveSet, error) {
	clusters, err := cl.Clusters()
	if err != nil {
		return nil, annotateSourceSet(withCause(External, err, "enumerate clusters"), cl.Name())
	}
	gmmSet := cl.Gmms()
	gmmNames := gmmSet.Gmms()
	imts := e.imts()

	futures := make([]*workpool.Future[clusterResult], len(clusters))
	for i, cluster := range clusters {
		cluster := cluster
		futures[i] = workpool.Go(e.pool, func() (clusterResult, error) {
			select {
			case <-ctx.Done():
				return clusterResult{}, withCause(Cancelled, ctx.Err(), "cluster %q cancelled", cluster.Name())
			default:
			}
			variants, err := cluster.Variants()
			if err != nil {
				return clusterResult{}, withCause(External, err, "enumerate variants for cluster %q", cluster.Name())
			}
			variantCurves := make([]*HazardCurves, len(variants))
			variantGMs := make([]*GroundMotions, len(variants))
			for vi, v := range variants {
				ruptures, err := v.Ruptures()
				if err != nil {
					return clusterResult{}, withCause(External, err, "enumerate ruptures for variant %q", v.Name())
				}
				inputs, err := buildInputs(v.Name(), SourceBacked, ruptures, site)
				if err != nil {
					return clusterResult{}, err
				}
				gm, err := buildGroundMotions(inputs, imts, gmmNames, gmmSet)
				if err != nil {
					return clusterResult{}, err
				}
				hc, err := e.buildCurves(gm)
				if err != nil {
					return clusterResult{}, err
				}
				variantCurves[vi] = hc
				variantGMs[vi] = gm
			}
			cc, err := BuildClusterCurves(cluster.Name(), cluster.Rate(), variantCurves, e.cfg.Grids)
			if err != nil {
				return clusterResult{}, err
			}
			cgm := &ClusterGroundMotions{ClusterName: cluster.Name(), Variants: variantGMs}
			return clusterResult{cc: cc, cgm: cgm, minDist: cgm.MinDistance()}, nil
		})
	}
	results, err := workpool.Join(futures)
	if err != nil {
		return nil, annotateSourceSet(err, cl.Name())
	}
	ccs := make([]*ClusterCurves, len(results))
	cgms := make([]*ClusterGroundMotions, len(results))
	minDists := make([]float64, len(results))
	weights := make([]float64, len(results))
	for i, r := range results {
		ccs[i] = r.cc
		cgms[i] = r.cgm
		minDists[i] = r.minDist
		weights[i] = clusters[i].Weight()
	}
	return ConsolidateClusters(cl.Name(), cl.Weight(), gmmSet, ccs, weights, minDists, cgms, e.cfg.Grids)
}
