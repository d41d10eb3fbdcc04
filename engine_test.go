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
	"testing"

	"github.com/ctessum/psha/exceedance"
)

// --- test fixtures: a minimal in-memory Model ---

type testRupture struct{ rate, mw, rjb, mu, sigma float64 }

func (r testRupture) ToInput(site Site) (HazardInput, error) {
	return HazardInput{Rate: r.rate, Mw: r.mw, RJB: r.rjb, RRup: r.rjb}, nil
}

type testSource struct {
	name     string
	ruptures []testRupture
}

func (s testSource) Name() string { return s.name }
func (s testSource) Ruptures() ([]Rupture, error) {
	out := make([]Rupture, len(s.ruptures))
	for i, r := range s.ruptures {
		out[i] = r
	}
	return out, nil
}

// testGmm evaluates to a fixed (mu, sigma) per rupture, looked up in
// byDist by the input's RRup (a simplification valid because every
// rupture in these tests carries a unique RRup).
type testGmm struct{ byDist map[float64][2]float64 }

func (g testGmm) Evaluate(input HazardInput, imt string) (mu, sigma float64, err error) {
	v := g.byDist[input.RRup]
	return v[0], v[1], nil
}

type testGmmSet struct {
	gmm testGmm
}

func (g testGmmSet) Gmms() []string { return []string{"GMM1"} }
func (g testGmmSet) Gmm(name string) (GroundMotionModel, error) { return g.gmm, nil }
func (g testGmmSet) WeightMap(distance float64) (map[string]float64, error) {
	return map[string]float64{"GMM1": 1.0}, nil
}

type testSourceSet struct {
	name    string
	t       SourceType
	weight  float64
	sources []testSource
	gmms    testGmmSet

	// for SYSTEM
	systemRuptures []testRupture

	// for CLUSTER
	clusters []testClusterSource
}

func (s *testSourceSet) Name() string      { return s.name }
func (s *testSourceSet) Type() SourceType  { return s.t }
func (s *testSourceSet) Weight() float64   { return s.weight }
func (s *testSourceSet) Gmms() GmmSet      { return s.gmms }
func (s *testSourceSet) Sources() ([]Source, error) {
	out := make([]Source, len(s.sources))
	for i, src := range s.sources {
		out[i] = src
	}
	return out, nil
}
func (s *testSourceSet) SystemRuptures() ([]Rupture, error) {
	out := make([]Rupture, len(s.systemRuptures))
	for i, r := range s.systemRuptures {
		out[i] = r
	}
	return out, nil
}
func (s *testSourceSet) Clusters() ([]ClusterSource, error) {
	out := make([]ClusterSource, len(s.clusters))
	for i, c := range s.clusters {
		out[i] = c
	}
	return out, nil
}

type testClusterSource struct {
	name     string
	rate     float64
	weight   float64
	variants []testSource
}

func (c testClusterSource) Name() string  { return c.name }
func (c testClusterSource) Rate() float64 { return c.rate }
func (c testClusterSource) Weight() float64 { return c.weight }
func (c testClusterSource) Variants() ([]Source, error) {
	out := make([]Source, len(c.variants))
	for i, v := range c.variants {
		out[i] = v
	}
	return out, nil
}

type testModel struct{ sets []SourceSet }

func (m *testModel) SourceSets() ([]SourceSet, error) { return m.sets, nil }

func testEngine(t *testing.T) (*Engine, map[string]*Grid) {
	t.Helper()
	grids := oneGmmGrids(t, []float64{-1, 0, 1})
	cfg := &Config{Grids: grids, Exceedance: exceedance.NewUntruncated(nil), Threads: PoolNMinus2}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return e, grids
}

func TestEngineHazardFault(t *testing.T) {
	e, _ := testEngine(t)
	gmm := testGmm{byDist: map[float64][2]float64{10: {0, 1}, 20: {0.5, 1}}}
	ss := &testSourceSet{
		name: "fault-set", t: Fault, weight: 1,
		gmms: testGmmSet{gmm: gmm},
		sources: []testSource{
			{name: "src1", ruptures: []testRupture{{rate: 0.01, mw: 6, rjb: 10}}},
			{name: "src2", ruptures: []testRupture{{rate: 0.02, mw: 6.5, rjb: 20}}},
		},
	}
	model := &testModel{sets: []SourceSet{ss}}
	hazard, err := e.Hazard(context.Background(), model, Site{Name: "site1"})
	if err != nil {
		t.Fatal(err)
	}
	total, ok := hazard.TotalCurve("PGA")
	if !ok {
		t.Fatal("expected a PGA curve")
	}
	if total.At(0) <= 0 {
		t.Error("expected positive hazard at the lowest intensity level")
	}
	sets := hazard.CurveSetsByType(Fault)
	if len(sets) != 1 || sets[0].SourceSetName != "fault-set" {
		t.Errorf("unexpected curve sets: %+v", sets)
	}
}

func TestEngineHazardSystem(t *testing.T) {
	e, _ := testEngine(t)
	gmm := testGmm{byDist: map[float64][2]float64{5: {0, 1}, 15: {0.2, 1}, 25: {0.4, 1}}}
	ss := &testSourceSet{
		name: "system-set", t: System, weight: 1,
		gmms: testGmmSet{gmm: gmm},
		systemRuptures: []testRupture{
			{rate: 0.01, mw: 6, rjb: 5},
			{rate: 0.01, mw: 6, rjb: 15},
			{rate: 0.01, mw: 6, rjb: 25},
		},
	}
	model := &testModel{sets: []SourceSet{ss}}
	hazard, err := e.Hazard(context.Background(), model, Site{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := hazard.TotalCurve("PGA"); !ok {
		t.Fatal("expected a PGA curve")
	}
}

func TestEngineHazardCluster(t *testing.T) {
	e, _ := testEngine(t)
	gmm := testGmm{byDist: map[float64][2]float64{10: {0, 1}, 12: {0.1, 1}}}
	cluster := testClusterSource{
		name: "cl1", rate: 0.05, weight: 1,
		variants: []testSource{
			{name: "v1", ruptures: []testRupture{{rate: 1, mw: 6, rjb: 10}}},
			{name: "v2", ruptures: []testRupture{{rate: 1, mw: 6, rjb: 12}}},
		},
	}
	ss := &testSourceSet{
		name: "cluster-set", t: Cluster, weight: 1,
		gmms:     testGmmSet{gmm: gmm},
		clusters: []testClusterSource{cluster},
	}
	model := &testModel{sets: []SourceSet{ss}}
	hazard, err := e.Hazard(context.Background(), model, Site{})
	if err != nil {
		t.Fatal(err)
	}
	total, ok := hazard.TotalCurve("PGA")
	if !ok {
		t.Fatal("expected a PGA curve")
	}
	for i := 0; i < total.Len(); i++ {
		if total.At(i) < 0 || total.At(i) > 0.05 {
			t.Errorf("cluster-derived total.At(%d) = %v out of [0, clusterRate]", i, total.At(i))
		}
	}
	sets := hazard.CurveSetsByType(Cluster)
	if len(sets) != 1 || len(sets[0].PerClusterCurves) != 1 || len(sets[0].ClusterWeights) != 1 {
		t.Fatalf("expected one retained cluster curve and weight, got %+v", sets[0])
	}
}

func TestEngineHazardDeterministicAcrossRuns(t *testing.T) {
	e, _ := testEngine(t)
	gmm := testGmm{byDist: map[float64][2]float64{10: {0, 1}, 20: {0.3, 1}, 30: {0.6, 1}}}
	var sources []testSource
	for i := 0; i < 12; i++ {
		d := float64(10 + i)
		gmm.byDist[d] = [2]float64{float64(i) * 0.05, 1}
		sources = append(sources, testSource{name: "s", ruptures: []testRupture{{rate: 0.001, mw: 6, rjb: d}}})
	}
	ss := &testSourceSet{name: "many", t: Fault, weight: 1, gmms: testGmmSet{gmm: gmm}, sources: sources}
	model := &testModel{sets: []SourceSet{ss}}

	first, err := e.Hazard(context.Background(), model, Site{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Hazard(context.Background(), model, Site{})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := first.TotalCurve("PGA")
	b, _ := second.TotalCurve("PGA")
	for i := 0; i < a.Len(); i++ {
		if a.At(i) != b.At(i) {
			t.Errorf("run-to-run mismatch at index %d: %v vs %v", i, a.At(i), b.At(i))
		}
	}
}

func TestEngineHazardSystemPartitionBitIdentical(t *testing.T) {
	grids := oneGmmGrids(t, []float64{-1, 0, 1})
	gmm := testGmm{byDist: map[float64][2]float64{}}
	var ruptures []testRupture
	for i := 0; i < 9; i++ {
		d := float64(10 + i)
		gmm.byDist[d] = [2]float64{float64(i) * 0.03, 1}
		ruptures = append(ruptures, testRupture{rate: 0.001 * float64(i+1), mw: 6 + 0.1*float64(i), rjb: d})
	}
	ss := &testSourceSet{name: "system-set", t: System, weight: 1, gmms: testGmmSet{gmm: gmm}, systemRuptures: ruptures}
	model := &testModel{sets: []SourceSet{ss}}

	unpartitioned, err := NewEngine(&Config{Grids: grids, Exceedance: exceedance.NewUntruncated(nil), Threads: PoolNMinus2, SystemPartitionSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	partitioned, err := NewEngine(&Config{Grids: grids, Exceedance: exceedance.NewUntruncated(nil), Threads: PoolNMinus2, SystemPartitionSize: 2})
	if err != nil {
		t.Fatal(err)
	}

	whole, err := unpartitioned.Hazard(context.Background(), model, Site{})
	if err != nil {
		t.Fatal(err)
	}
	chunked, err := partitioned.Hazard(context.Background(), model, Site{})
	if err != nil {
		t.Fatal(err)
	}

	a, ok := whole.TotalCurve("PGA")
	if !ok {
		t.Fatal("expected a PGA curve from the unpartitioned run")
	}
	b, ok := chunked.TotalCurve("PGA")
	if !ok {
		t.Fatal("expected a PGA curve from the partitioned run")
	}
	if a.Len() != b.Len() {
		t.Fatalf("curve length mismatch: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		if a.At(i) != b.At(i) {
			t.Errorf("partitioned vs unpartitioned mismatch at index %d: %v vs %v", i, a.At(i), b.At(i))
		}
	}
}

func TestEngineHazardInvalidSiteRejected(t *testing.T) {
	e, _ := testEngine(t)
	model := &testModel{sets: nil}
	_, err := e.Hazard(context.Background(), model, Site{Vs30: 1})
	if err == nil {
		t.Error("expected ConfigInvalid for an out-of-range site")
	}
}

func TestEngineHazardCancelledContext(t *testing.T) {
	e, _ := testEngine(t)
	ss := &testSourceSet{
		name: "fault-set", t: Fault, weight: 1,
		gmms:    testGmmSet{gmm: testGmm{byDist: map[float64][2]float64{10: {0, 1}}}},
		sources: []testSource{{name: "s1", ruptures: []testRupture{{rate: 1, mw: 6, rjb: 10}}}},
	}
	model := &testModel{sets: []SourceSet{ss}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Hazard(ctx, model, Site{})
	if err == nil {
		t.Error("expected Cancelled error for an already-cancelled context")
	}
}
