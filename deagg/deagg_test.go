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
	"testing"

	"github.com/ctessum/psha"
	"github.com/ctessum/psha/exceedance"
)

type fakeGmms struct{ names []string }

func (f fakeGmms) Gmms() []string { return f.names }
func (f fakeGmms) Gmm(name string) (psha.GroundMotionModel, error) {
	return nil, psha.NewError(psha.ConfigInvalid, "not implemented")
}
func (f fakeGmms) WeightMap(distance float64) (map[string]float64, error) {
	w := make(map[string]float64, len(f.names))
	for _, n := range f.names {
		w[n] = 1.0 / float64(len(f.names))
	}
	return w, nil
}

func testGrids(t *testing.T) map[string]*psha.Grid {
	t.Helper()
	g, err := psha.NewGrid("PGA", []float64{-2, -1, 0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	return map[string]*psha.Grid{"PGA": g}
}

func testGM(t *testing.T, grids map[string]*psha.Grid, parent string, rjb, rate, mw, mu, sigma float64) *psha.GroundMotions {
	t.Helper()
	inputs := psha.NewInputList(parent, psha.SourceBacked)
	if err := inputs.Add(psha.HazardInput{Rate: rate, Mw: mw, RJB: rjb, RRup: rjb}); err != nil {
		t.Fatal(err)
	}
	b := psha.NewGroundMotionsBuilder(inputs, []string{"PGA"}, []string{"GMM1"})
	if err := b.Add("PGA", "GMM1", mu, sigma, 0); err != nil {
		t.Fatal(err)
	}
	gm, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return gm
}

func testDeaggBins(t *testing.T) *BinModel {
	t.Helper()
	b, err := NewBinModel(0, 100, 10, 4, 9, 1, -3, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDeaggregatePlainAccumulatesContributions(t *testing.T) {
	grids := testGrids(t)
	gmms := fakeGmms{names: []string{"GMM1"}}
	gm1 := testGM(t, grids, "src1", 10, 0.01, 6, 0, 1)
	gm2 := testGM(t, grids, "src2", 20, 0.02, 6.5, 0.2, 1)

	cs, err := psha.ConsolidatePlain("ss1", psha.Fault, 1, gmms, []*psha.HazardCurves{hcFor(t, grids, gm1), hcFor(t, grids, gm2)}, []float64{10, 20}, []*psha.GroundMotions{gm1, gm2}, grids)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{IMT: "PGA", IML: 0, Model: exceedance.NewUntruncated(nil), Gmms: gmms, Bins: testDeaggBins(t)}
	result, err := Deaggregate(cs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	ds, ok := result["GMM1"]
	if !ok {
		t.Fatal("expected a GMM1 dataset")
	}
	if len(ds.Contributions()) != 2 {
		t.Errorf("expected 2 contributions, got %d", len(ds.Contributions()))
	}
	var total float64
	for _, c := range ds.Contributions() {
		total += c.Rate
	}
	if total <= 0 {
		t.Error("expected positive total contributed rate")
	}
}

func hcFor(t *testing.T, grids map[string]*psha.Grid, gm *psha.GroundMotions) *psha.HazardCurves {
	t.Helper()
	cb := psha.NewHazardCurvesBuilder(grids, exceedance.NewUntruncated(nil))
	if err := cb.Accumulate(gm); err != nil {
		t.Fatal(err)
	}
	hc, err := cb.Build()
	if err != nil {
		t.Fatal(err)
	}
	return hc
}

func TestDeaggregateRejectsIncompleteConfig(t *testing.T) {
	grids := testGrids(t)
	gmms := fakeGmms{names: []string{"GMM1"}}
	gm := testGM(t, grids, "src1", 10, 0.01, 6, 0, 1)
	cs, err := psha.ConsolidatePlain("ss1", psha.Fault, 1, gmms, []*psha.HazardCurves{hcFor(t, grids, gm)}, []float64{10}, []*psha.GroundMotions{gm}, grids)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{Model: exceedance.NewUntruncated(nil), Gmms: gmms, Bins: testDeaggBins(t)}
	if _, err := Deaggregate(cs, cfg); err == nil {
		t.Error("expected ConfigInvalid for missing IMT")
	}
}

func TestDeaggregateClustersRescalesToClusterRate(t *testing.T) {
	grids := testGrids(t)
	gmms := fakeGmms{names: []string{"GMM1"}}

	gmV1 := testGM(t, grids, "v1", 10, 1.0, 6, 0, 1)
	gmV2 := testGM(t, grids, "v2", 12, 1.0, 6, 0.3, 1)
	hcV1 := hcFor(t, grids, gmV1)
	hcV2 := hcFor(t, grids, gmV2)

	cc, err := psha.BuildClusterCurves("cl1", 0.05, []*psha.HazardCurves{hcV1, hcV2}, grids)
	if err != nil {
		t.Fatal(err)
	}
	cgm := &psha.ClusterGroundMotions{ClusterName: "cl1", Variants: []*psha.GroundMotions{gmV1, gmV2}}

	cs, err := psha.ConsolidateClusters("clset", 1, gmms, []*psha.ClusterCurves{cc}, []float64{1}, []float64{cgm.MinDistance()}, []*psha.ClusterGroundMotions{cgm}, grids)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{IMT: "PGA", IML: 0, Model: exceedance.NewUntruncated(nil), Gmms: gmms, Bins: testDeaggBins(t)}
	result, err := Deaggregate(cs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	ds, ok := result["GMM1"]
	if !ok {
		t.Fatal("expected a GMM1 dataset")
	}
	var totalRate float64
	for _, c := range ds.Contributions() {
		totalRate += c.Rate
	}
	wantRate := cc.Curve("PGA", "GMM1").InterpolateAt(0)
	if !approxEqual(totalRate, wantRate, 1e-6) {
		t.Errorf("deaggregated cluster total rate = %v, want %v (matching the combined curve at iml)", totalRate, wantRate)
	}
}

func TestAggregateCombinesMultipleSourceSets(t *testing.T) {
	grids := testGrids(t)
	gmms := fakeGmms{names: []string{"GMM1"}}
	bins := testDeaggBins(t)

	gm1 := testGM(t, grids, "src1", 10, 0.01, 6, 0, 1)
	cs1, err := psha.ConsolidatePlain("ss1", psha.Fault, 1, gmms, []*psha.HazardCurves{hcFor(t, grids, gm1)}, []float64{10}, []*psha.GroundMotions{gm1}, grids)
	if err != nil {
		t.Fatal(err)
	}
	gm2 := testGM(t, grids, "src2", 15, 0.02, 6, 0, 1)
	cs2, err := psha.ConsolidatePlain("ss2", psha.Fault, 1, gmms, []*psha.HazardCurves{hcFor(t, grids, gm2)}, []float64{15}, []*psha.GroundMotions{gm2}, grids)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &Config{IMT: "PGA", IML: 0, Model: exceedance.NewUntruncated(nil), Gmms: gmms, Bins: bins}
	r1, err := Deaggregate(cs1, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Deaggregate(cs2, cfg)
	if err != nil {
		t.Fatal(err)
	}
	agg, err := Aggregate(r1, r2)
	if err != nil {
		t.Fatal(err)
	}
	ds := agg["GMM1"]
	if len(ds.Contributions()) != 2 {
		t.Errorf("aggregated dataset should retain both sources' contributions, got %d", len(ds.Contributions()))
	}
}
