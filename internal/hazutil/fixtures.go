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

package hazutil

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/ctessum/psha"
)

// This file is a stand-in for the out-of-scope source-model collaborator
// (spec.md's Non-goals exclude fault geometry, rupture enumeration
// geometry, and GMM implementations). It loads a toy JSON source model
// so pshazard has something to run against; it is not a production
// source-model parser, and the GMM it evaluates is a simple attenuation
// form chosen for illustration, not for engineering use.

// fixtureModel is the on-disk JSON shape for a toy source model.
type fixtureModel struct {
	Imts       map[string][]float64   `json:"imts"`
	SourceSets []fixtureSourceSet     `json:"sourceSets"`
}

type fixtureSourceSet struct {
	Name    string              `json:"name"`
	Type    string              `json:"type"`
	Weight  float64             `json:"weight"`
	Gmms    fixtureGmmSet       `json:"gmms"`
	Sources []fixtureSource     `json:"sources,omitempty"`
	// Ruptures is used for SYSTEM source sets, which flatten all
	// ruptures under the source set directly.
	Ruptures []fixtureRupture   `json:"ruptures,omitempty"`
	Clusters []fixtureCluster   `json:"clusters,omitempty"`
}

type fixtureSource struct {
	Name     string           `json:"name"`
	Ruptures []fixtureRupture `json:"ruptures"`
}

type fixtureCluster struct {
	Name     string          `json:"name"`
	Rate     float64         `json:"rate"`
	Weight   float64         `json:"weight"`
	Variants []fixtureSource `json:"variants"`
}

// fixtureRupture carries ground-motion predictor variables directly:
// computing them from fault geometry and a site location is out of
// scope (spec.md Non-goals), so the fixture supplies them precomputed.
type fixtureRupture struct {
	Rate  float64 `json:"rate"`
	Mw    float64 `json:"mw"`
	RJB   float64 `json:"rjb"`
	RRup  float64 `json:"rrup"`
	RX    float64 `json:"rx"`
	Dip   float64 `json:"dip"`
	Width float64 `json:"width"`
	ZTop  float64 `json:"ztop"`
	ZHyp  float64 `json:"zhyp"`
	Rake  float64 `json:"rake"`
}

type fixtureGmmSet struct {
	Models       map[string]fixtureGmm   `json:"models"`
	WeightSteps  []fixtureWeightStep     `json:"weightSteps"`
}

// fixtureWeightStep gives the GMM weights applicable for sources at or
// below MaxDistance; steps are checked in the order given and the first
// matching step is used. A source beyond every step's MaxDistance uses
// no GMMs (an empty weight map), matching psha.GmmSet.WeightMap's
// documented "distance too great" case.
type fixtureWeightStep struct {
	MaxDistance float64            `json:"maxDistance"`
	Weights     map[string]float64 `json:"weights"`
}

// fixtureGmm parameterizes a simple "illustration only" attenuation
// model: ln(median) = A + B*(mw-6) + C*ln(rrup+H), constant sigma.
type fixtureGmm struct {
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	C     float64 `json:"c"`
	H     float64 `json:"h"`
	Sigma float64 `json:"sigma"`
}

// LoadFixtureModel reads a toy JSON source model from path.
func LoadFixtureModel(path string) (psha.Model, map[string]*psha.Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, psha.WithCause(psha.External, err, "hazutil: reading fixture model %q", path)
	}
	var fm fixtureModel
	if err := json.Unmarshal(raw, &fm); err != nil {
		return nil, nil, psha.WithCause(psha.ConfigInvalid, err, "hazutil: parsing fixture model %q", path)
	}
	grids := make(map[string]*psha.Grid, len(fm.Imts))
	for imt, x := range fm.Imts {
		g, err := psha.NewGrid(imt, x)
		if err != nil {
			return nil, nil, err
		}
		grids[imt] = g
	}
	return &fixtureModelImpl{fm: fm}, grids, nil
}

type fixtureModelImpl struct{ fm fixtureModel }

func (m *fixtureModelImpl) SourceSets() ([]psha.SourceSet, error) {
	out := make([]psha.SourceSet, len(m.fm.SourceSets))
	for i, ss := range m.fm.SourceSets {
		t, ok := sourceTypeByName[ss.Type]
		if !ok {
			return nil, psha.NewError(psha.ConfigInvalid, "hazutil: unknown source set type %q", ss.Type)
		}
		out[i] = &fixtureSourceSetImpl{ss: ss, t: t, gmms: newFixtureGmmSet(ss.Gmms)}
	}
	return out, nil
}

// GmmsByName returns the GmmSet belonging to the named source set, for
// callers (e.g. the run command, building a deagg.Config per source
// set) that need the same collaborator the engine used to build a
// given HazardCurveSet. It is not part of psha.Model; it is a
// fixture-specific convenience.
func (m *fixtureModelImpl) GmmsByName(name string) (psha.GmmSet, bool) {
	for _, ss := range m.fm.SourceSets {
		if ss.Name == name {
			return newFixtureGmmSet(ss.Gmms), true
		}
	}
	return nil, false
}

var sourceTypeByName = map[string]psha.SourceType{
	"FAULT":     psha.Fault,
	"GRID":      psha.GridSet,
	"INTERFACE": psha.Interface,
	"SLAB":      psha.Slab,
	"CLUSTER":   psha.Cluster,
	"SYSTEM":    psha.System,
}

type fixtureSourceSetImpl struct {
	ss   fixtureSourceSet
	t    psha.SourceType
	gmms *fixtureGmmSetImpl
}

func (s *fixtureSourceSetImpl) Name() string        { return s.ss.Name }
func (s *fixtureSourceSetImpl) Type() psha.SourceType { return s.t }
func (s *fixtureSourceSetImpl) Weight() float64     { return s.ss.Weight }
func (s *fixtureSourceSetImpl) Gmms() psha.GmmSet   { return s.gmms }

func (s *fixtureSourceSetImpl) Sources() ([]psha.Source, error) {
	out := make([]psha.Source, len(s.ss.Sources))
	for i, src := range s.ss.Sources {
		out[i] = &fixtureSourceImpl{name: src.Name, ruptures: src.Ruptures}
	}
	return out, nil
}

func (s *fixtureSourceSetImpl) SystemRuptures() ([]psha.Rupture, error) {
	out := make([]psha.Rupture, len(s.ss.Ruptures))
	for i, r := range s.ss.Ruptures {
		out[i] = fixtureRuptureImpl{r}
	}
	return out, nil
}

func (s *fixtureSourceSetImpl) Clusters() ([]psha.ClusterSource, error) {
	out := make([]psha.ClusterSource, len(s.ss.Clusters))
	for i, c := range s.ss.Clusters {
		out[i] = &fixtureClusterImpl{c}
	}
	return out, nil
}

type fixtureSourceImpl struct {
	name     string
	ruptures []fixtureRupture
}

func (s *fixtureSourceImpl) Name() string { return s.name }

func (s *fixtureSourceImpl) Ruptures() ([]psha.Rupture, error) {
	out := make([]psha.Rupture, len(s.ruptures))
	for i, r := range s.ruptures {
		out[i] = fixtureRuptureImpl{r}
	}
	return out, nil
}

type fixtureClusterImpl struct{ c fixtureCluster }

func (c *fixtureClusterImpl) Name() string   { return c.c.Name }
func (c *fixtureClusterImpl) Rate() float64  { return c.c.Rate }
func (c *fixtureClusterImpl) Weight() float64 { return c.c.Weight }

func (c *fixtureClusterImpl) Variants() ([]psha.Source, error) {
	out := make([]psha.Source, len(c.c.Variants))
	for i, v := range c.c.Variants {
		out[i] = &fixtureSourceImpl{name: v.Name, ruptures: v.Ruptures}
	}
	return out, nil
}

// fixtureRuptureImpl adapts a fixtureRupture to psha.Rupture. Site Vs30,
// VsInferred, Z1p0, and Z2p5 come straight from the site, since the
// toy fixture carries no site-response data of its own.
type fixtureRuptureImpl struct{ r fixtureRupture }

func (r fixtureRuptureImpl) ToInput(site psha.Site) (psha.HazardInput, error) {
	return psha.HazardInput{
		Rate:       r.r.Rate,
		Mw:         r.r.Mw,
		RJB:        r.r.RJB,
		RRup:       r.r.RRup,
		RX:         r.r.RX,
		Dip:        r.r.Dip,
		Width:      r.r.Width,
		ZTop:       r.r.ZTop,
		ZHyp:       r.r.ZHyp,
		Rake:       r.r.Rake,
		Vs30:       site.Vs30,
		VsInferred: site.VsInferred,
		Z1p0:       site.Z1p0,
		Z2p5:       site.Z2p5,
	}, nil
}

type fixtureGmmSetImpl struct {
	names []string
	gmms  map[string]fixtureGmm
	steps []fixtureWeightStep
}

func newFixtureGmmSet(fg fixtureGmmSet) *fixtureGmmSetImpl {
	names := make([]string, 0, len(fg.Models))
	for name := range fg.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return &fixtureGmmSetImpl{names: names, gmms: fg.Models, steps: fg.WeightSteps}
}

func (g *fixtureGmmSetImpl) Gmms() []string { return g.names }

func (g *fixtureGmmSetImpl) Gmm(name string) (psha.GroundMotionModel, error) {
	p, ok := g.gmms[name]
	if !ok {
		return nil, psha.NewError(psha.ConfigInvalid, "hazutil: unknown gmm %q", name)
	}
	return fixtureGmmImpl{p}, nil
}

func (g *fixtureGmmSetImpl) WeightMap(distance float64) (map[string]float64, error) {
	for _, step := range g.steps {
		if distance <= step.MaxDistance {
			return step.Weights, nil
		}
	}
	return map[string]float64{}, nil
}

// fixtureGmmImpl is a toy lognormal attenuation model, for illustration
// only: ln(median) = A + B*(mw-6) + C*ln(rrup+H), with constant sigma.
type fixtureGmmImpl struct{ p fixtureGmm }

func (g fixtureGmmImpl) Evaluate(input psha.HazardInput, imt string) (mu, sigma float64, err error) {
	mu = g.p.A + g.p.B*(input.Mw-6) + g.p.C*math.Log(input.RRup+g.p.H)
	return mu, g.p.Sigma, nil
}
